package changelog

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/etnz/go-debian/version"
)

// ParseError reports a line that does not follow the changelog format.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse changelog: line %d: %s", e.Line, e.Msg)
}

// ErrNotFound is returned by Lookup when no block has the version.
var ErrNotFound = errors.New("changelog: version not found")

const namechars = `[-+0-9a-z.]`

var (
	toplineRe = regexp.MustCompile(`(?i)^(\w` + namechars + `*) \(([^\(\) \t]+)\)` +
		`((\s+` + namechars + `+)+);`)
	blanklineRe = regexp.MustCompile(`^\s*$`)
	changeRe    = regexp.MustCompile(`^\s\s+.*$`)
	endlineRe   = regexp.MustCompile(`^ -- (.*) <(.*)>(  ?)((\w+,\s*)?\d{1,2}\s+\w+\s+` +
		`\d{4}\s+\d{1,2}:\d\d:\d\d\s+[-+]\d{4}\s*)$`)
	endlineNoDetailsRe = regexp.MustCompile(`^ --(?: (.*) <(.*)>(  ?)((\w+,\s*)?\d{1,2}` +
		`\s+\w+\s+\d{4}\s+\d{1,2}:\d\d:\d\d\s+[-+]\d{4}))?\s*$`)
	keyvalueRe     = regexp.MustCompile(`(?i)^([-0-9a-z]+)=\s*(.*\S)$`)
	urgencyValueRe = regexp.MustCompile(`(?i)^([-0-9a-z]+)((\s+.*)?)$`)

	emacsVariablesRe = regexp.MustCompile(`(?i)^(;;\s*)?Local variables:`)
	vimVariablesRe   = regexp.MustCompile(`(?i)^vim:`)
	cvsKeywordRe     = regexp.MustCompile(`^\$\w+:.*\$`)
	commentsRe       = regexp.MustCompile(`^# `)
	moreCommentsRe   = regexp.MustCompile(`^/\*.*\*/`)

	oldFormatRes = []*regexp.Regexp{
		regexp.MustCompile(`^(\w+\s+\w+\s+\d{1,2} \d{1,2}:\d{1,2}:\d{1,2}\s+[\w\s]*\d{4})\s+(.*)\s+(<|\()(.*)(\)|>)`),
		regexp.MustCompile(`^(\w+\s+\w+\s+\d{1,2},?\s*\d{4})\s+(.*)\s+(<|\()(.*)(\)|>)`),
		regexp.MustCompile(`(?i)^(\w[-+0-9a-z.]*) \(([^\(\) \t]+)\);?`),
		regexp.MustCompile(`(?i)^([\w.+-]+)(-| )(\S+) Debian (\S+)`),
		regexp.MustCompile(`(?i)^Changes from version (.*) to (.*):`),
		regexp.MustCompile(`(?i)^Changes for [\w.+-]+-[\w.+-]+:?\s*$`),
		regexp.MustCompile(`(?i)^Old Changelog:\s*$`),
		regexp.MustCompile(`^(?:\d+:)?\w[\w.+~-]*:?\s*$`),
	}
)

type state int

const (
	firstHeading state = iota
	nextHeadingOrEOF
	startOfChangeData
	moreChangesOrTrailer
	slurpToEnd
)

func (s state) String() string {
	switch s {
	case firstHeading:
		return "first heading"
	case nextHeadingOrEOF:
		return "next heading of EOF"
	case startOfChangeData:
		return "start of change data"
	case moreChangesOrTrailer:
		return "more change data or trailer"
	default:
		return "slurp to end"
	}
}

// Changelog is a parsed debian/changelog. Blocks are ordered newest first.
type Changelog struct {
	// InitialLines are blank lines and comments before the first heading.
	InitialLines []string
	Blocks       []*Block
}

// Parse reads a changelog from r.
func Parse(r io.Reader, opts ...Option) (*Changelog, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading changelog")
	}
	if o.encoding != nil {
		if data, err = o.encoding.NewDecoder().Bytes(data); err != nil {
			return nil, errors.Wrap(err, "decoding changelog")
		}
	}
	p := &parser{opts: o, cl: &Changelog{}}
	if err := p.parse(string(data)); err != nil {
		return nil, err
	}
	return p.cl, nil
}

// ParseString parses a changelog held in s.
func ParseString(s string, opts ...Option) (*Changelog, error) {
	return Parse(strings.NewReader(s), opts...)
}

type parser struct {
	opts     options
	cl       *Changelog
	line     int
	state    state
	oldState state
	current  *Block
	changes  []string
}

func (p *parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if p.opts.strict {
		return &ParseError{Line: p.line, Msg: msg}
	}
	p.opts.logger.Warn("malformed changelog line", "line", p.line, "reason", msg)
	return nil
}

// splitLines splits s at line boundaries: "\n", "\r\n", "\r", "\v", "\f",
// the separators 0x1c-0x1e, NEL, U+2028 and U+2029. A final boundary does
// not start an empty line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch r {
		case '\n', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			lines = append(lines, s[start:i])
			i += size
			start = i
			continue
		case '\r':
			lines = append(lines, s[start:i])
			i += size
			if i < len(s) && s[i] == '\n' {
				i++
			}
			start = i
			continue
		}
		i += size
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// keep appends a line outside any change block: to the initial lines
// before the first heading, to the previous block's trailer otherwise.
func (p *parser) keep(line string) {
	if p.state == firstHeading {
		p.cl.InitialLines = append(p.cl.InitialLines, line)
		return
	}
	p.last().AddTrailingLine(line)
}

func (p *parser) last() *Block { return p.cl.Blocks[len(p.cl.Blocks)-1] }

func (p *parser) parse(text string) error {
	if text == "" {
		return p.errorf("Empty changelog file.")
	}
	p.current = NewBlock()
	p.state = firstHeading
	for _, line := range splitLines(text) {
		p.line++
		var (
			done bool
			err  error
		)
		switch p.state {
		case firstHeading, nextHeadingOrEOF:
			done, err = p.heading(line)
		case startOfChangeData, moreChangesOrTrailer:
			err = p.changeData(line)
		case slurpToEnd:
			if p.oldState == nextHeadingOrEOF {
				p.last().AddTrailingLine(line)
			} else {
				p.changes = append(p.changes, line)
			}
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if (p.state != nextHeadingOrEOF && p.state != slurpToEnd) ||
		(p.state == slurpToEnd && p.oldState != nextHeadingOrEOF) {
		if err := p.errorf("Found eof where expected %s", p.state); err != nil {
			return err
		}
		p.current.SetChanges(p.changes)
		p.current.noTrailer = true
		p.cl.Blocks = append(p.cl.Blocks, p.current)
	}
	return nil
}

// heading handles a line while looking for a block heading. It reports
// whether parsing should stop because the block limit was reached.
func (p *parser) heading(line string) (bool, error) {
	if m := toplineRe.FindStringSubmatch(line); m != nil {
		if p.opts.maxBlocks > 0 && len(p.cl.Blocks) >= p.opts.maxBlocks {
			return true, nil
		}
		b := p.current
		b.Package = m[1]
		b.Version = m[2]
		b.Distributions = strings.TrimLeft(m[3], " \t")
		_, pairs, _ := strings.Cut(line, ";")
		seen := make(map[string]bool)
		for _, pair := range strings.Split(pairs, ",") {
			pair = strings.TrimSpace(pair)
			kv := keyvalueRe.FindStringSubmatch(pair)
			if kv == nil {
				if err := p.errorf("Invalid key-value pair after ';': %s", pair); err != nil {
					return false, err
				}
				continue
			}
			key, value := kv[1], kv[2]
			lower := strings.ToLower(key)
			if seen[lower] {
				if err := p.errorf("Repeated key-value: %s", lower); err != nil {
					return false, err
				}
			}
			seen[lower] = true
			if lower != "urgency" {
				b.Other = append(b.Other, Pair{Key: key, Value: value})
				continue
			}
			um := urgencyValueRe.FindStringSubmatch(value)
			if um == nil {
				if err := p.errorf("Badly formatted urgency value: %s", value); err != nil {
					return false, err
				}
				continue
			}
			b.Urgency = um[1]
			b.UrgencyComment = um[2]
		}
		p.state = startOfChangeData
		return false, nil
	}

	if blanklineRe.MatchString(line) {
		p.keep(line)
		return false, nil
	}
	if (emacsVariablesRe.MatchString(line) || vimVariablesRe.MatchString(line)) && p.state != firstHeading {
		p.last().AddTrailingLine(line)
		p.oldState, p.state = p.state, slurpToEnd
		return false, nil
	}
	if cvsKeywordRe.MatchString(line) || commentsRe.MatchString(line) || moreCommentsRe.MatchString(line) {
		p.keep(line)
		return false, nil
	}
	if p.state != firstHeading && isOldFormat(line) {
		p.last().AddTrailingLine(line)
		p.oldState, p.state = p.state, slurpToEnd
		return false, nil
	}
	if err := p.errorf("Unexpected line while looking for %s: %s", p.state, line); err != nil {
		return false, err
	}
	p.keep(line)
	return false, nil
}

func isOldFormat(line string) bool {
	for _, re := range oldFormatRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func (p *parser) changeData(line string) error {
	switch {
	case changeRe.MatchString(line):
		p.changes = append(p.changes, line)
		p.state = moreChangesOrTrailer
	case endlineRe.MatchString(line):
		m := endlineRe.FindStringSubmatch(line)
		if m[3] != "  " {
			if err := p.errorf("Badly formatted trailer line: %s", line); err != nil {
				return err
			}
			p.current.trailerSep = m[3]
		}
		p.current.Author = m[1] + " <" + m[2] + ">"
		p.current.Date = m[4]
		p.finishBlock()
	case endlineNoDetailsRe.MatchString(line):
		if !p.opts.allowEmptyAuthor {
			return p.errorf("Badly formatted trailer line: %s", line)
		}
		p.finishBlock()
	case blanklineRe.MatchString(line):
		p.changes = append(p.changes, line)
	case cvsKeywordRe.MatchString(line) || commentsRe.MatchString(line) || moreCommentsRe.MatchString(line):
		p.changes = append(p.changes, line)
	default:
		if err := p.errorf("Unexpected line while looking for %s: %s", p.state, line); err != nil {
			return err
		}
		p.changes = append(p.changes, line)
	}
	return nil
}

func (p *parser) finishBlock() {
	p.current.SetChanges(p.changes)
	p.cl.Blocks = append(p.cl.Blocks, p.current)
	p.changes = nil
	p.current = NewBlock()
	p.state = nextHeadingOrEOF
}

// Len returns the number of blocks.
func (c *Changelog) Len() int { return len(c.Blocks) }

// Block returns the i-th block, newest first.
func (c *Changelog) Block(i int) *Block { return c.Blocks[i] }

// Top returns the newest block, or nil for an empty changelog.
func (c *Changelog) Top() *Block {
	if len(c.Blocks) == 0 {
		return nil
	}
	return c.Blocks[0]
}

// Versions returns the version of every block, newest first.
func (c *Changelog) Versions() ([]version.Version, error) {
	out := make([]version.Version, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		v, err := b.ParsedVersion()
		if err != nil {
			return nil, errors.Wrapf(err, "block %s", b.Version)
		}
		out = append(out, v)
	}
	return out, nil
}

// Lookup returns the block for version v. Versions are compared by
// value, so "1:1.0" and "01:1.0" match.
func (c *Changelog) Lookup(v string) (*Block, error) {
	want, err := version.Parse(v)
	if err != nil {
		return nil, err
	}
	for _, b := range c.Blocks {
		got, err := b.ParsedVersion()
		if err != nil {
			continue
		}
		if got.Compare(want) == 0 {
			return b, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "%s", v)
}

// NewBlock inserts b as the newest block. A blank trailing line separates
// it from the previous one.
func (c *Changelog) NewBlock(b *Block) {
	b.AddTrailingLine("")
	c.Blocks = append([]*Block{b}, c.Blocks...)
}

// WriteTo writes the formatted changelog.
func (c *Changelog) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, l := range c.InitialLines {
		buf.WriteString(l + "\n")
	}
	for _, b := range c.Blocks {
		s, err := b.Format()
		if err != nil {
			return 0, errors.Wrapf(err, "block %s", b.Version)
		}
		buf.WriteString(s)
	}
	return buf.WriteTo(w)
}

// Format returns the formatted changelog.
func (c *Changelog) Format() (string, error) {
	var b strings.Builder
	if _, err := c.WriteTo(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// String returns the formatted changelog, or "" if a block is incomplete.
func (c *Changelog) String() string {
	s, _ := c.Format()
	return s
}
