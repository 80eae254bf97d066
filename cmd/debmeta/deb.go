package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/etnz/go-debian/deb822"
	"github.com/etnz/go-debian/debfile"
)

// debCommand runs fn on every .deb given as argument.
func debCommand(use, short string, fn func(d *debfile.DebFile) (any, func(io.Writer) error, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " FILE...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forEachFile(cmd.OutOrStdout(), args, func(path string) (any, func(io.Writer) error, error) {
				d, err := debfile.OpenFile(path)
				if err != nil {
					return nil, nil, err
				}
				return fn(d)
			})
		},
	}
}

type contentEntry struct {
	Name string `json:"name" yaml:"name"`
	Mode int64  `json:"mode" yaml:"mode"`
	Size int64  `json:"size" yaml:"size"`
	Link string `json:"link,omitempty" yaml:"link,omitempty"`
}

func newDebCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deb",
		Short: "Inspect .deb archives",
	}

	info := debCommand("info", "Print the control file", func(d *debfile.DebFile) (any, func(io.Writer) error, error) {
		p, err := d.ControlParagraph()
		if err != nil {
			return nil, nil, err
		}
		m := paragraphMaps([]*deb822.Paragraph{p})[0]
		return m, func(w io.Writer) error {
			_, err := p.WriteTo(w)
			return err
		}, nil
	})

	contents := debCommand("contents", "List the files of the data member", func(d *debfile.DebFile) (any, func(io.Writer) error, error) {
		var entries []contentEntry
		for _, name := range d.Data().List() {
			h, _ := d.Data().Header(name)
			entries = append(entries, contentEntry{Name: name, Mode: h.Mode, Size: h.Size, Link: h.Linkname})
		}
		return entries, func(w io.Writer) error {
			for _, e := range entries {
				if e.Link != "" {
					fmt.Fprintf(w, "%04o %8d %s -> %s\n", e.Mode, e.Size, e.Name, e.Link)
				} else {
					fmt.Fprintf(w, "%04o %8d %s\n", e.Mode, e.Size, e.Name)
				}
			}
			return nil
		}, nil
	})

	md5sums := debCommand("md5sums", "Print the md5sums control file", func(d *debfile.DebFile) (any, func(io.Writer) error, error) {
		sums, err := d.Md5sums()
		if err != nil {
			return nil, nil, err
		}
		return sums, func(w io.Writer) error {
			for _, name := range sortedKeys(sums) {
				fmt.Fprintf(w, "%s  %s\n", sums[name], name)
			}
			return nil
		}, nil
	})

	changelogCmd := debCommand("changelog", "Print the packaged Debian changelog", func(d *debfile.DebFile) (any, func(io.Writer) error, error) {
		c, err := d.Changelog()
		if err != nil {
			return nil, nil, err
		}
		blocks := make([]blockSummary, c.Len())
		for i, b := range c.Blocks {
			blocks[i] = summarize(b)
		}
		return blocks, func(w io.Writer) error {
			_, err := c.WriteTo(w)
			return err
		}, nil
	})

	scripts := debCommand("scripts", "Print the maintainer scripts", func(d *debfile.DebFile) (any, func(io.Writer) error, error) {
		byName := make(map[string]string)
		for name, body := range d.Scripts() {
			byName[string(name)] = string(body)
		}
		return byName, func(w io.Writer) error {
			for _, name := range sortedKeys(byName) {
				fmt.Fprintf(w, "### %s\n%s", name, byName[name])
				if !strings.HasSuffix(byName[name], "\n") {
					fmt.Fprintln(w)
				}
			}
			return nil
		}, nil
	})

	extractCron := &cobra.Command{
		Use:   "extract-cron FILE DIR",
		Short: "Extract the cron jobs shipped under etc/cron* into DIR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := debfile.OpenFile(args[0])
			if err != nil {
				return err
			}
			extracted, err := extractCronFiles(d, args[1])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), extracted, func(w io.Writer) error {
				for _, name := range extracted {
					fmt.Fprintln(w, name)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(info, contents, md5sums, changelogCmd, scripts, extractCron)
	return cmd
}

// extractCronFiles writes the regular files under etc/cron* to dir, keeping
// their relative path, and returns their names.
func extractCronFiles(d *debfile.DebFile, dir string) ([]string, error) {
	var extracted []string
	for _, name := range d.Data().List() {
		if !strings.HasPrefix(name, "etc/cron") {
			continue
		}
		h, _ := d.Data().Header(name)
		if h.FileInfo().IsDir() {
			continue
		}
		content, err := d.Data().Get(name)
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, errors.Wrap(err, "creating directory")
		}
		if err := os.WriteFile(dest, content, os.FileMode(h.Mode).Perm()); err != nil {
			return nil, errors.Wrapf(err, "writing %s", name)
		}
		slog.Debug("extracted cron file", "name", name, "dest", dest)
		extracted = append(extracted, name)
	}
	return extracted, nil
}
