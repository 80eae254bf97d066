package deb822

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// SyntaxError reports a line the decoder could not interpret.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("deb822: line %d: %s: %q", e.Line, e.Msg, e.Text)
}

var fieldLineRe = regexp.MustCompile(`^([^:\s]+)\s*:\s*(.*?)\s*$`)

const (
	armorSignedMessage = "-----BEGIN PGP SIGNED MESSAGE-----"
	armorSignature     = "-----BEGIN PGP SIGNATURE-----"
	armorSignatureEnd  = "-----END PGP SIGNATURE-----"
)

type armorState int

const (
	armorUnknown armorState = iota
	armorNone
	armorHeaders
	armorBody
	armorSig
	armorDone
)

// Decoder reads successive paragraphs from an input stream.
type Decoder struct {
	r        *bufio.Reader
	opts     options
	line     int
	armor    armorState
	verified bool
	err      error
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	return &Decoder{
		r:    bufio.NewReader(r),
		opts: newOptions(opts),
	}
}

// Parse decodes all paragraphs from r.
func Parse(r io.Reader, opts ...Option) ([]*Paragraph, error) {
	d := NewDecoder(r, opts...)
	var out []*Paragraph
	for {
		p, err := d.Decode()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}

// ParseString decodes all paragraphs from s.
func ParseString(s string, opts ...Option) ([]*Paragraph, error) {
	return Parse(strings.NewReader(s), opts...)
}

// ParseOne decodes the first paragraph of s. It returns an empty paragraph
// for empty input.
func ParseOne(s string, opts ...Option) (*Paragraph, error) {
	p, err := NewDecoder(strings.NewReader(s), opts...).Decode()
	if err == io.EOF {
		return NewParagraph(), nil
	}
	return p, err
}

// Decode returns the next paragraph, or io.EOF when the input is exhausted.
func (d *Decoder) Decode() (*Paragraph, error) {
	if d.err != nil {
		return nil, d.err
	}
	if err := d.verify(); err != nil {
		d.err = err
		return nil, err
	}

	p := NewParagraph()
	var (
		name    string
		value   strings.Builder
		started bool
	)
	flush := func() {
		if name == "" {
			return
		}
		if d.opts.fields == nil || d.opts.fields[foldName(name)] {
			p.set(name, value.String())
		}
		name = ""
		value.Reset()
	}

	for {
		line, ok, err := d.nextLine()
		if err != nil {
			d.err = err
			return nil, err
		}
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			if started {
				break
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if name == "" {
				if err := d.syntax(line, "continuation line outside of a field"); err != nil {
					return nil, err
				}
				continue
			}
			value.WriteString("\n")
			value.WriteString(strings.TrimRight(line, " \t"))
			continue
		}
		m := fieldLineRe.FindStringSubmatch(line)
		if m == nil {
			if err := d.syntax(line, "not a field"); err != nil {
				return nil, err
			}
			continue
		}
		flush()
		started = true
		name = m[1]
		value.WriteString(m[2])
	}
	flush()

	if !started {
		d.err = io.EOF
		return nil, io.EOF
	}
	return p, nil
}

func (d *Decoder) syntax(line, msg string) error {
	serr := &SyntaxError{Line: d.line, Text: line, Msg: msg}
	if d.opts.strict {
		d.err = serr
		return serr
	}
	d.opts.logger.Warn("skipping malformed deb822 line", "line", d.line, "text", line, "reason", msg)
	return nil
}

// verify consumes the whole input on first use when a keyring is
// configured, and continues decoding from the verified plaintext.
func (d *Decoder) verify() error {
	if d.opts.keyring == nil || d.verified {
		return nil
	}
	d.verified = true
	data, err := io.ReadAll(d.r)
	if err != nil {
		return errors.Wrap(err, "reading signed input")
	}
	body, _, err := VerifySigned(data, d.opts.keyring)
	if err != nil {
		return err
	}
	d.r = bufio.NewReader(bytes.NewReader(body))
	d.armor = armorNone
	return nil
}

func (d *Decoder) readLine() (string, bool, error) {
	line, err := d.r.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", false, nil
		}
	} else if err != nil {
		return "", false, errors.Wrapf(err, "reading line %d", d.line+1)
	}
	d.line++
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, true, nil
}

// nextLine returns the next payload line, stripping any clearsign armor.
func (d *Decoder) nextLine() (string, bool, error) {
	for {
		line, ok, err := d.readLine()
		if err != nil || !ok {
			return "", false, err
		}
		switch d.armor {
		case armorUnknown:
			if strings.TrimSpace(line) == "" {
				return line, true, nil
			}
			if line == armorSignedMessage {
				d.armor = armorHeaders
				continue
			}
			d.armor = armorNone
			return line, true, nil
		case armorHeaders:
			if strings.TrimSpace(line) == "" {
				d.armor = armorBody
			}
		case armorBody:
			if line == armorSignature {
				d.armor = armorSig
				return "", true, nil
			}
			return strings.TrimPrefix(line, "- "), true, nil
		case armorSig:
			if line == armorSignatureEnd {
				d.armor = armorDone
			}
		case armorDone:
		default:
			return line, true, nil
		}
	}
}
