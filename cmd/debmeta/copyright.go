package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/copyright"
)

func newCopyrightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copyright",
		Short: "Read machine-readable debian/copyright files",
	}

	check := &cobra.Command{
		Use:   "check FILE [PATH...]",
		Short: "Validate a copyright file and show the license of each path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			c, err := copyright.Parse(f)
			if err != nil {
				return err
			}
			type match struct {
				Path      string `json:"path" yaml:"path"`
				License   string `json:"license,omitempty" yaml:"license,omitempty"`
				Copyright string `json:"copyright,omitempty" yaml:"copyright,omitempty"`
			}
			out := struct {
				Format  string  `json:"format" yaml:"format"`
				Files   int     `json:"files_paragraphs" yaml:"files_paragraphs"`
				Matches []match `json:"matches,omitempty" yaml:"matches,omitempty"`
			}{Format: c.Header().Format(), Files: len(c.FilesParagraphs())}
			for _, p := range args[1:] {
				m := match{Path: p}
				if fp := c.FindFilesParagraph(p); fp != nil {
					m.License = fp.License().Synopsis
					m.Copyright = fp.Copyright()
				}
				out.Matches = append(out.Matches, m)
			}
			return printResult(cmd.OutOrStdout(), out, func(w io.Writer) error {
				fmt.Fprintf(w, "%s: valid, %d Files paragraphs\n", args[0], out.Files)
				for _, m := range out.Matches {
					if m.License == "" {
						fmt.Fprintf(w, "%s: no matching Files paragraph\n", m.Path)
						continue
					}
					fmt.Fprintf(w, "%s: %s\n", m.Path, m.License)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(check)
	return cmd
}
