package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/substvars"
)

func newSubstvarsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "substvars",
		Short: "Read and edit debian/*.substvars files",
	}

	list := &cobra.Command{
		Use:   "list FILE",
		Short: "Print the variables of a substvars file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := substvars.Load(args[0], false)
			if err != nil {
				return err
			}
			vars := make(map[string]substvars.Var, s.Len())
			for _, name := range s.Keys() {
				vars[name], _ = s.Var(name)
			}
			return printResult(cmd.OutOrStdout(), vars, func(w io.Writer) error {
				_, err := s.WriteTo(w)
				return err
			})
		},
	}

	set := &cobra.Command{
		Use:   "set FILE NAME VALUE",
		Short: "Assign a variable, creating the file if needed",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := substvars.Load(args[0], true)
			if err != nil {
				return err
			}
			s.Set(args[1], args[2])
			return s.Save()
		},
	}

	addDep := &cobra.Command{
		Use:   "add-dependency FILE NAME RELATION",
		Short: "Add a relation to a dependency variable such as misc:Depends",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := substvars.Load(args[0], true)
			if err != nil {
				return err
			}
			s.AddDependency(args[1], args[2])
			if err := s.Save(); err != nil {
				return err
			}
			v, _ := s.Get(args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", args[1], v)
			return nil
		},
	}

	cmd.AddCommand(list, set, addDep)
	return cmd
}
