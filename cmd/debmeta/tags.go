package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/debtags"
)

func readTagDB(path string) (*debtags.DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	db := debtags.New()
	if err := db.Read(f, nil); err != nil {
		return nil, err
	}
	return db, nil
}

func printLines(cmd *cobra.Command, lines []string) error {
	return printResult(cmd.OutOrStdout(), lines, func(w io.Writer) error {
		_, err := io.WriteString(w, strings.Join(append(lines, ""), "\n"))
		return err
	})
}

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Query debtags databases",
	}

	reverse := &cobra.Command{
		Use:   "reverse FILE",
		Short: "Print the tag to packages mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := readTagDB(args[0])
			if err != nil {
				return err
			}
			return db.Reverse().Write(cmd.OutOrStdout())
		},
	}

	var limit int
	related := &cobra.Command{
		Use:   "related FILE PKG",
		Short: "List packages sharing the most tags with PKG",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := readTagDB(args[0])
			if err != nil {
				return err
			}
			if !db.HasPackage(args[1]) {
				return errors.Newf("package %q is not in %s", args[1], args[0])
			}
			return printLines(cmd, db.Related(args[1], limit))
		},
	}
	related.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of packages")

	relevance := &cobra.Command{
		Use:   "relevance FILE PKG...",
		Short: "Rank the tags of a set of packages by relevance to it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			full, err := readTagDB(args[0])
			if err != nil {
				return err
			}
			sub := full.ChoosePackages(args[1:]...)
			type scored struct {
				Tag   string  `json:"tag" yaml:"tag"`
				Score float64 `json:"score" yaml:"score"`
				Card  int     `json:"card" yaml:"card"`
			}
			var out []scored
			for _, tag := range sub.TagsByRelevance(full) {
				out = append(out, scored{Tag: tag, Score: sub.RelevanceIndex(tag, full), Card: sub.Card(tag)})
			}
			return printResult(cmd.OutOrStdout(), out, func(w io.Writer) error {
				for _, s := range out {
					fmt.Fprintf(w, "%s %.3f (%d/%d)\n", s.Tag, s.Score, s.Card, full.Card(s.Tag))
				}
				return nil
			})
		},
	}

	ideal := &cobra.Command{
		Use:   "ideal FILE PKG...",
		Short: "Suggest a tag set that best narrows down the given packages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			full, err := readTagDB(args[0])
			if err != nil {
				return err
			}
			sub := full.ChoosePackages(args[1:]...)
			return printLines(cmd, sub.IdealTagset(sub.TagsByRelevance(full)))
		},
	}

	cmd.AddCommand(reverse, related, relevance, ideal)
	return cmd
}
