package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/changelog"
)

func readChangelog(path string) (*changelog.Changelog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return changelog.Parse(f)
}

type blockSummary struct {
	Package       string   `json:"package" yaml:"package"`
	Version       string   `json:"version" yaml:"version"`
	Distributions string   `json:"distributions" yaml:"distributions"`
	Urgency       string   `json:"urgency" yaml:"urgency"`
	Author        string   `json:"author" yaml:"author"`
	Date          string   `json:"date" yaml:"date"`
	Changes       []string `json:"changes" yaml:"changes"`
}

func summarize(b *changelog.Block) blockSummary {
	return blockSummary{
		Package:       b.Package,
		Version:       b.Version,
		Distributions: b.Distributions,
		Urgency:       b.Urgency,
		Author:        b.Author,
		Date:          b.Date,
		Changes:       b.Changes,
	}
}

func newChangelogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Read debian/changelog files",
	}

	var ver string
	show := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a changelog, or one of its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readChangelog(args[0])
			if err != nil {
				return err
			}
			if ver == "" {
				blocks := make([]blockSummary, c.Len())
				for i, b := range c.Blocks {
					blocks[i] = summarize(b)
				}
				return printResult(cmd.OutOrStdout(), blocks, func(w io.Writer) error {
					_, err := c.WriteTo(w)
					return err
				})
			}
			b, err := c.Lookup(ver)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), summarize(b), func(w io.Writer) error {
				s, err := b.Format()
				if err != nil {
					return err
				}
				_, err = io.WriteString(w, s)
				return err
			})
		},
	}
	show.Flags().StringVar(&ver, "version", "", "show only the entry of this version")

	versions := &cobra.Command{
		Use:   "versions FILE",
		Short: "List the versions of a changelog, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readChangelog(args[0])
			if err != nil {
				return err
			}
			vs, err := c.Versions()
			if err != nil {
				return err
			}
			out := make([]string, len(vs))
			for i, v := range vs {
				out[i] = v.String()
			}
			return printResult(cmd.OutOrStdout(), out, func(w io.Writer) error {
				for _, v := range out {
					fmt.Fprintln(w, v)
				}
				return nil
			})
		},
	}

	bugs := &cobra.Command{
		Use:   "bugs FILE",
		Short: "List the Debian and Launchpad bugs closed by each entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readChangelog(args[0])
			if err != nil {
				return err
			}
			type closed struct {
				Version   string `json:"version" yaml:"version"`
				Bugs      []int  `json:"bugs,omitempty" yaml:"bugs,omitempty"`
				Launchpad []int  `json:"launchpad,omitempty" yaml:"launchpad,omitempty"`
			}
			var out []closed
			for _, b := range c.Blocks {
				cl := closed{Version: b.Version, Bugs: b.BugsClosed(), Launchpad: b.LPBugsClosed()}
				if len(cl.Bugs)+len(cl.Launchpad) > 0 {
					out = append(out, cl)
				}
			}
			return printResult(cmd.OutOrStdout(), out, func(w io.Writer) error {
				for _, cl := range out {
					fmt.Fprintf(w, "%s:", cl.Version)
					for _, b := range cl.Bugs {
						fmt.Fprintf(w, " #%d", b)
					}
					for _, b := range cl.Launchpad {
						fmt.Fprintf(w, " LP#%d", b)
					}
					fmt.Fprintln(w)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(show, versions, bugs)
	return cmd
}
