package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/deb822"
)

func newControlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Read deb822 control files",
	}

	var fields []string
	dump := &cobra.Command{
		Use:   "dump FILE...",
		Short: "Parse and re-dump the paragraphs of control files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forEachFile(cmd.OutOrStdout(), args, func(path string) (any, func(io.Writer) error, error) {
				paragraphs, err := readParagraphs(path, deb822.WithFields(fields...))
				if err != nil {
					return nil, nil, err
				}
				return paragraphMaps(paragraphs), func(w io.Writer) error {
					return deb822.WriteParagraphs(w, paragraphs)
				}, nil
			})
		},
	}
	dump.Flags().StringSliceVar(&fields, "fields", nil, "keep only these fields")

	get := &cobra.Command{
		Use:   "get FILE FIELD",
		Short: "Print a field of every paragraph that has it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paragraphs, err := readParagraphs(args[0])
			if err != nil {
				return err
			}
			var values []string
			for _, p := range paragraphs {
				if v, ok := p.Get(args[1]); ok {
					values = append(values, strings.TrimPrefix(v, "\n"))
				}
			}
			return printResult(cmd.OutOrStdout(), values, func(w io.Writer) error {
				for _, v := range values {
					fmt.Fprintln(w, v)
				}
				return nil
			})
		},
	}

	relations := &cobra.Command{
		Use:   "relations FILE FIELD",
		Short: "Parse a relationship field such as Depends",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paragraphs, err := readParagraphs(args[0])
			if err != nil {
				return err
			}
			var all []deb822.Relations
			for _, p := range paragraphs {
				if v, ok := p.Get(args[1]); ok {
					all = append(all, deb822.ParseRelations(v))
				}
			}
			return printResult(cmd.OutOrStdout(), all, func(w io.Writer) error {
				for _, rels := range all {
					for _, alts := range rels {
						fmt.Fprintln(w, alts)
					}
				}
				return nil
			})
		},
	}

	var keyringPath string
	verify := &cobra.Command{
		Use:   "verify FILE",
		Short: "Check the OpenPGP signature of a clearsigned file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyring, err := loadKeyring(keyringPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := deb822.Verify(data, keyring)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), info, func(w io.Writer) error {
				fmt.Fprintf(w, "Good signature from key %s\n", info.KeyID)
				fmt.Fprintf(w, "Fingerprint: %s\n", info.Fingerprint)
				for _, id := range info.Identities {
					fmt.Fprintf(w, "Identity: %s\n", id)
				}
				return nil
			})
		},
	}
	verify.Flags().StringVarP(&keyringPath, "keyring", "k", "", "OpenPGP keyring, armored or binary")
	verify.MarkFlagRequired("keyring")

	cmd.AddCommand(dump, get, relations, verify)
	return cmd
}

func readParagraphs(path string, opts ...deb822.Option) ([]*deb822.Paragraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return deb822.Parse(f, opts...)
}

func loadKeyring(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return deb822.ReadKeyring(f)
}

// paragraphMaps converts paragraphs for structured output.
func paragraphMaps(paragraphs []*deb822.Paragraph) []map[string]string {
	out := make([]map[string]string, len(paragraphs))
	for i, p := range paragraphs {
		m := make(map[string]string, p.Len())
		for _, k := range p.Keys() {
			m[k] = p.Value(k)
		}
		out[i] = m
	}
	return out
}
