package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"
)

func validOutput(format string) bool {
	switch format {
	case "text", "json", "yaml":
		return true
	}
	return false
}

// printResult writes v in the selected format; text renders the text form.
func printResult(w io.Writer, v any, text func(io.Writer) error) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// fileResult is the outcome of processing one input file.
type fileResult struct {
	File   string `json:"file" yaml:"file"`
	Result any    `json:"result" yaml:"result"`
	text   func(io.Writer) error
}

// forEachFile runs fn on every file with at most jobs running at once,
// then prints the results in input order. Text output separates files
// with a "==> name <==" header when there are several.
func forEachFile(w io.Writer, files []string, fn func(path string) (any, func(io.Writer) error, error)) error {
	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range files {
		g.Go(func() error {
			v, text, err := fn(path)
			if err != nil {
				return errors.Wrapf(err, "%s", path)
			}
			results[i] = fileResult{File: path, Result: v, text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(results) == 1 {
		return printResult(w, results[0].Result, results[0].text)
	}
	return printResult(w, results, func(w io.Writer) error {
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "==> %s <==\n", r.File)
			if err := r.text(w); err != nil {
				return err
			}
		}
		return nil
	})
}

// newProgress returns a progress bar on w, or nil when disabled.
func newProgress(w io.Writer, total int, enabled bool) *pb.ProgressBar {
	if !enabled {
		return nil
	}
	return pb.New(total).SetWriter(w).Start()
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
