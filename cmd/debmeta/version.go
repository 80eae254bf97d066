package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Compare and check Debian version strings",
	}

	compare := &cobra.Command{
		Use:   "compare A B",
		Short: "Compare two versions; prints <, = or >",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := version.Compare(args[0], args[1])
			if err != nil {
				return err
			}
			op := map[int]string{-1: "<", 0: "=", 1: ">"}[c]
			return printResult(cmd.OutOrStdout(), c, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s %s %s\n", args[0], op, args[1])
				return err
			})
		},
	}

	check := &cobra.Command{
		Use:   "check V",
		Short: "Validate a version string against the policy syntax",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := version.Parse(args[0])
			if err != nil {
				return err
			}
			if err := version.Strict(args[0]); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), v, func(w io.Writer) error {
				fmt.Fprintf(w, "epoch=%s upstream=%s revision=%s\n", v.Epoch, v.Upstream, v.Revision)
				return nil
			})
		},
	}

	bump := &cobra.Command{
		Use:   "bump V",
		Short: "Increment the Debian revision of a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next := version.BumpRevision(args[0])
			return printResult(cmd.OutOrStdout(), next, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, next)
				return err
			})
		},
	}

	cmd.AddCommand(compare, check, bump)
	return cmd
}
