package copyright

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidValue is returned when a value cannot be stored in a field.
var ErrInvalidValue = errors.New("copyright: invalid value")

// Codec converts between a field value and a list of items.
type Codec interface {
	Parse(s string) []string
	// Format returns "" for an empty list.
	Format(items []string) (string, error)
}

var (
	// LineBased holds one item per line. A single item stays on the field
	// line; several start on the line after the field name.
	LineBased Codec = lineBased{}
	// SpaceSeparated holds items separated by whitespace.
	SpaceSeparated Codec = spaceSeparated{}
)

type lineBased struct{}

func (lineBased) Parse(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (lineBased) Format(items []string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	clean := make([]string, len(items))
	for i, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errors.Wrap(ErrInvalidValue, "values must not be empty")
		}
		if strings.Contains(s, "\n") {
			return "", errors.Wrap(ErrInvalidValue, "values must not contain newlines")
		}
		clean[i] = s
	}
	if len(clean) == 1 {
		return clean[0], nil
	}
	return "\n " + strings.Join(clean, "\n "), nil
}

type spaceSeparated struct{}

func (spaceSeparated) Parse(s string) []string {
	return strings.Fields(s)
}

func (spaceSeparated) Format(items []string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	clean := make([]string, len(items))
	for i, s := range items {
		if strings.ContainsAny(s, " \t\n\r\v\f") {
			return "", errors.Wrap(ErrInvalidValue, "values must not contain whitespace")
		}
		if s == "" {
			return "", errors.Wrap(ErrInvalidValue, "values must not be empty")
		}
		clean[i] = s
	}
	return strings.Join(clean, " "), nil
}

// FormatMultilineLines renders text lines as a field value: lines after
// the first are indented and empty ones become " .".
func FormatMultilineLines(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n ")
			if strings.TrimSpace(line) == "" {
				line = "."
			}
		}
		b.WriteString(line)
	}
	return b.String()
}

// FormatMultiline is FormatMultilineLines on the lines of s.
func FormatMultiline(s string) string {
	if s == "" {
		return ""
	}
	return FormatMultilineLines(strings.Split(s, "\n"))
}

// ParseMultilineAsLines undoes FormatMultilineLines.
func ParseMultilineAsLines(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			line = line[1:]
		}
		if strings.TrimSpace(line) == "." {
			line = ""
		}
		lines[i] = line
	}
	return lines
}

// ParseMultiline undoes FormatMultiline.
func ParseMultiline(s string) string {
	return strings.Join(ParseMultilineAsLines(s), "\n")
}
