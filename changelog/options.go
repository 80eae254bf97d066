package changelog

import (
	"log/slog"

	"golang.org/x/text/encoding"
)

type options struct {
	maxBlocks        int
	allowEmptyAuthor bool
	strict           bool
	encoding         encoding.Encoding
	logger           *slog.Logger
}

// Option configures changelog parsing.
type Option interface {
	apply(*options)
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{f: f}
}

// WithMaxBlocks stops parsing after n blocks. Zero means no limit.
func WithMaxBlocks(n int) Option {
	return newFuncOption(func(o *options) {
		o.maxBlocks = n
	})
}

// WithAllowEmptyAuthor accepts a bare " --" trailer, leaving Author and
// Date empty.
func WithAllowEmptyAuthor(allow bool) Option {
	return newFuncOption(func(o *options) {
		o.allowEmptyAuthor = allow
	})
}

// WithStrict makes every format deviation a *ParseError. By default such
// deviations are logged.
func WithStrict(strict bool) Option {
	return newFuncOption(func(o *options) {
		o.strict = strict
	})
}

// WithEncoding decodes the input from enc instead of UTF-8, e.g.
// charmap.ISO8859_1.
func WithEncoding(enc encoding.Encoding) Option {
	return newFuncOption(func(o *options) {
		o.encoding = enc
	})
}

// WithLogger sets the logger receiving parse warnings.
// defaults to slog.Default()
func WithLogger(l *slog.Logger) Option {
	return newFuncOption(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}
