package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/archtable"
)

func newArchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arch",
		Short: "Match dpkg architectures and wildcards",
	}

	match := &cobra.Command{
		Use:   "match ARCH WILDCARD",
		Short: "Report whether ARCH matches an architecture or wildcard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := archtable.Load(cfg.ArchTable.Dir)
			if err != nil {
				return err
			}
			ok := t.Matches(args[0], args[1])
			return printResult(cmd.OutOrStdout(), ok, func(w io.Writer) error {
				verb := "matches"
				if !ok {
					verb = "does not match"
				}
				_, err := fmt.Fprintf(w, "%s %s %s\n", args[0], verb, args[1])
				return err
			})
		},
	}

	var allowMixing bool
	concerned := &cobra.Command{
		Use:   "concerned ARCH RESTRICTION...",
		Short: "Evaluate an architecture restriction list such as \"linux-any !arm64\"",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := archtable.Load(cfg.ArchTable.Dir)
			if err != nil {
				return err
			}
			restrictions := strings.Fields(strings.Join(args[1:], " "))
			ok, err := t.IsConcerned(args[0], restrictions, allowMixing)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), ok, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, ok)
				return err
			})
		},
	}
	concerned.Flags().BoolVar(&allowMixing, "allow-mixing", false, "accept lists mixing negated and plain entries")

	cmd.AddCommand(match, concerned)
	return cmd
}
