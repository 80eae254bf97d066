package main

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Read debian/watch files",
	}

	var pkg string
	dump := &cobra.Command{
		Use:   "dump FILE",
		Short: "Parse and re-dump a watch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			w, err := watch.Parse(f)
			if err != nil {
				return err
			}
			if w == nil {
				return errors.Newf("%s: empty watch file", args[0])
			}
			if pkg != "" {
				for i := range w.Entries {
					w.Entries[i].URL = watch.Expand(w.Entries[i].URL, pkg)
					w.Entries[i].MatchingPattern = watch.Expand(w.Entries[i].MatchingPattern, pkg)
				}
			}
			return printResult(cmd.OutOrStdout(), w, func(out io.Writer) error {
				_, err := w.WriteTo(out)
				return err
			})
		},
	}
	dump.Flags().StringVar(&pkg, "package", "", "expand @PACKAGE@ and the other substitutions for this source package")

	cmd.AddCommand(dump)
	return cmd
}
