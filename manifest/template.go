package manifest

import (
	"strings"
	"text/template"
)

// templateEngine renders text templates against a set of definitions.
type templateEngine struct {
	defines map[string]string
}

func newTemplateEngine(defines map[string]string) *templateEngine {
	d := make(map[string]string, len(defines))
	for k, v := range defines {
		d[k] = v
	}
	return &templateEngine{defines: d}
}

// sub returns an engine inheriting e's definitions, overridden by locals.
func (e *templateEngine) sub(locals map[string]string) *templateEngine {
	s := newTemplateEngine(e.defines)
	for k, v := range locals {
		s.defines[k] = v
	}
	return s
}

// render executes text as a template. Text without "{{" is returned as is.
// Undefined keys are an error.
func (e *templateEngine) render(name, text string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := t.Execute(&buf, e.defines); err != nil {
		return "", err
	}
	return buf.String(), nil
}
