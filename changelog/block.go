package changelog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/etnz/go-debian/version"
)

// ErrChangelogCreate is returned when a block lacks information required
// to format it.
var ErrChangelogCreate = errors.New("changelog: missing information")

// Pair is a key=value item of a heading line other than urgency.
type Pair struct {
	Key   string
	Value string
}

// Block is one entry of a changelog.
type Block struct {
	Package string
	// Version is the raw version string of the heading.
	Version       string
	Distributions string
	// Urgency defaults to "unknown".
	Urgency string
	// UrgencyComment is any text following the urgency value, including
	// its leading whitespace.
	UrgencyComment string
	// Other holds the remaining heading key=value pairs in order.
	Other []Pair
	// Changes are the lines between heading and trailer, blank lines
	// included.
	Changes []string
	Author  string
	Date    string

	changesSet bool
	trailing   []string
	noTrailer  bool
	trailerSep string
}

// NewBlock returns a block with default urgency and trailer separator.
func NewBlock() *Block {
	return &Block{Urgency: "unknown", trailerSep: "  "}
}

// ParsedVersion parses the Version of the block.
func (b *Block) ParsedVersion() (version.Version, error) {
	return version.Parse(b.Version)
}

// SetChanges replaces the change lines.
func (b *Block) SetChanges(lines []string) {
	b.Changes = lines
	b.changesSet = true
}

// AddChange inserts a change line after the last non-blank change, so that
// trailing blank lines stay at the end.
func (b *Block) AddChange(line string) {
	b.changesSet = true
	for i := len(b.Changes) - 1; i >= 0; i-- {
		if strings.TrimSpace(b.Changes[i]) != "" {
			b.Changes = append(b.Changes[:i+1], append([]string{line}, b.Changes[i+1:]...)...)
			return
		}
	}
	b.Changes = append(b.Changes, line)
}

// AddTrailingLine appends a line printed after the trailer.
func (b *Block) AddTrailingLine(line string) {
	b.trailing = append(b.trailing, line)
}

// TrailingLines returns the lines following the trailer: blank lines,
// comments and anything kept verbatim from old-format sections.
func (b *Block) TrailingLines() []string { return b.trailing }

var (
	xbcsRe     = regexp.MustCompile(`(?i)^X[BCS]+-`)
	closesRe   = regexp.MustCompile(`(?i)closes:\s*(?:bug)?#?\s?\d+(?:,\s*(?:bug)?#?\s?\d+)*`)
	closesLPRe = regexp.MustCompile(`(?i)lp:\s+#\d+(?:,\s*#\d+)*`)
	digitsRe   = regexp.MustCompile(`\d+`)
)

// OtherKeysNormalised returns the Other pairs with keys capitalised and
// prefixed with "XS-" unless they already carry an X[BCS]- prefix.
func (b *Block) OtherKeysNormalised() []Pair {
	out := make([]Pair, 0, len(b.Other))
	for _, p := range b.Other {
		key := p.Key
		if key != "" {
			key = strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
		}
		if !xbcsRe.MatchString(key) {
			key = "XS-" + key
		}
		out = append(out, Pair{Key: key, Value: p.Value})
	}
	return out
}

// BugsClosed returns the Debian bugs closed by the block, in order of
// appearance.
func (b *Block) BugsClosed() []int { return b.bugs(closesRe) }

// LPBugsClosed returns the Launchpad bugs closed by the block.
func (b *Block) LPBugsClosed() []int { return b.bugs(closesLPRe) }

func (b *Block) bugs(re *regexp.Regexp) []int {
	text := strings.Join(b.Changes, " ")
	bugs := []int{}
	for _, m := range re.FindAllString(text, -1) {
		for _, d := range digitsRe.FindAllString(m, -1) {
			n, err := strconv.Atoi(d)
			if err != nil {
				continue
			}
			bugs = append(bugs, n)
		}
	}
	return bugs
}

// Format renders the block. It fails with ErrChangelogCreate if a
// required part is missing.
func (b *Block) Format() (string, error) {
	var s strings.Builder
	if b.Package == "" {
		return "", errors.Wrap(ErrChangelogCreate, "package not specified")
	}
	if b.Version == "" {
		return "", errors.Wrap(ErrChangelogCreate, "version not specified")
	}
	if b.Distributions == "" {
		return "", errors.Wrap(ErrChangelogCreate, "distribution not specified")
	}
	if b.Urgency == "" {
		return "", errors.Wrap(ErrChangelogCreate, "urgency not specified")
	}
	s.WriteString(b.Package + " (" + b.Version + ") " + b.Distributions + "; ")
	s.WriteString("urgency=" + b.Urgency + b.UrgencyComment)
	for _, p := range b.Other {
		s.WriteString(", " + p.Key + "=" + p.Value)
	}
	s.WriteString("\n")
	if !b.changesSet && b.Changes == nil {
		return "", errors.Wrap(ErrChangelogCreate, "changes not specified")
	}
	for _, c := range b.Changes {
		s.WriteString(c + "\n")
	}
	if !b.noTrailer {
		if b.Author == "" {
			return "", errors.Wrap(ErrChangelogCreate, "author not specified")
		}
		if b.Date == "" {
			return "", errors.Wrap(ErrChangelogCreate, "date not specified")
		}
		sep := b.trailerSep
		if sep == "" {
			sep = "  "
		}
		s.WriteString(" -- " + b.Author + sep + b.Date + "\n")
	}
	for _, l := range b.trailing {
		s.WriteString(l + "\n")
	}
	return s.String(), nil
}
