package deb822

import (
	"log/slog"

	"github.com/ProtonMail/go-crypto/openpgp"
)

type options struct {
	strict  bool
	fields  map[string]bool
	keyring openpgp.KeyRing
	logger  *slog.Logger
	repro   reproOptions
}

type reproOptions struct {
	acceptErrors     bool
	acceptDuplicates bool
}

// Option configures parsing of deb822 input.
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{f: f}
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		repro: reproOptions{
			acceptDuplicates: true,
		},
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

// WithStrict makes the decoder fail on lines that are neither fields,
// continuations, comments nor separators. By default such lines are logged
// and skipped.
func WithStrict(strict bool) Option {
	return newFuncOption(func(o *options) {
		o.strict = strict
	})
}

// WithFields restricts decoded paragraphs to the named fields.
func WithFields(names ...string) Option {
	return newFuncOption(func(o *options) {
		if len(names) == 0 {
			o.fields = nil
			return
		}
		o.fields = make(map[string]bool, len(names))
		for _, n := range names {
			o.fields[foldName(n)] = true
		}
	})
}

// WithKeyring requires clearsigned input and verifies its signature against
// keyring before any paragraph is returned.
func WithKeyring(keyring openpgp.KeyRing) Option {
	return newFuncOption(func(o *options) {
		o.keyring = keyring
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

// AcceptErrorTokens lets ParseFile return files containing lines it could
// not parse. They are kept verbatim and reported by File.IsValid.
// defaults to false
func AcceptErrorTokens(accept bool) Option {
	return newFuncOption(func(o *options) {
		o.repro.acceptErrors = accept
	})
}

// AcceptDuplicateFields lets ParseFile return paragraphs with repeated
// field names.
// defaults to true
func AcceptDuplicateFields(accept bool) Option {
	return newFuncOption(func(o *options) {
		o.repro.acceptDuplicates = accept
	})
}
