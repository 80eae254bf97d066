package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/etnz/go-debian/manifest"
	"github.com/etnz/go-debian/repo"
)

// loadSigner reads the signing key from path, or from GPG_PRIVATE_KEY.
// It returns nil when neither is set.
func loadSigner(path string) (*openpgp.Entity, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening signing key")
		}
		defer f.Close()
		return repo.ReadSigner(f)
	}
	if key := os.Getenv("GPG_PRIVATE_KEY"); key != "" {
		return repo.ReadSigner(strings.NewReader(key))
	}
	return nil, nil
}

// readPackages loads the .deb files concurrently, in argument order.
func readPackages(paths []string, progress bool) ([]*repo.Deb, error) {
	debs := make([]*repo.Deb, len(paths))
	bar := newProgress(os.Stderr, len(paths), progress)
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range paths {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			d, err := repo.ReadDeb(content)
			if err != nil {
				return errors.Wrapf(err, "reading %s", path)
			}
			debs[i] = d
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	err := g.Wait()
	if bar != nil {
		bar.Finish()
	}
	return debs, err
}

func newRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Build, compile and verify flat APT repositories",
	}

	var (
		progress  bool
		overwrite bool
		signKey   string
		info      repo.ArchiveInfo
	)
	build := &cobra.Command{
		Use:   "build DIR DEB...",
		Short: "Write a flat repository holding the given packages to DIR",
		Long: `Write a flat repository holding the given packages to DIR.

Release fields default to the [repo] section of the configuration file.
The signing key is read from --sign-key, the configuration, or the
GPG_PRIVATE_KEY environment variable; without one InRelease is not written.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &repo.Repository{Info: mergeInfo(cfg.Repo.ArchiveInfo, info)}
			if signKey == "" {
				signKey = cfg.Repo.SigningKey
			}
			signer, err := loadSigner(signKey)
			if err != nil {
				return err
			}
			r.Signer = signer

			debs, err := readPackages(args[1:], progress)
			if err != nil {
				return err
			}
			for _, d := range debs {
				if overwrite {
					r.AddOverwriteDeb(d)
					continue
				}
				if _, err := r.AppendDeb(d); err != nil {
					return err
				}
			}
			if err := r.WriteToDir(args[0]); err != nil {
				return err
			}
			slog.Info("repository built", "dir", args[0], "packages", len(r.Packages), "signed", signer != nil)
			return nil
		},
	}
	build.Flags().BoolVar(&progress, "progress", false, "show a progress bar while reading packages")
	build.Flags().BoolVar(&overwrite, "overwrite", false, "let later packages replace earlier ones with the same name, version and architecture")
	build.Flags().StringVar(&signKey, "sign-key", "", "ASCII-armored private key used to sign InRelease")
	build.Flags().StringVar(&info.Origin, "origin", "", "Release Origin")
	build.Flags().StringVar(&info.Label, "label", "", "Release Label")
	build.Flags().StringVar(&info.Suite, "suite", "", "Release Suite")
	build.Flags().StringVar(&info.Codename, "codename", "", "Release Codename")
	build.Flags().StringVar(&info.Architectures, "architectures", "", "Release Architectures, space separated")
	build.Flags().StringVar(&info.Components, "components", "", "Release Components, space separated")
	build.Flags().StringVar(&info.Description, "description", "", "Release Description")

	var keyringPath string
	verify := &cobra.Command{
		Use:   "verify DIR",
		Short: "Check the InRelease signature and index checksums of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyring, err := loadKeyring(keyringPath)
			if err != nil {
				return err
			}
			v, err := repo.VerifyDir(args[0], keyring)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), v, func(w io.Writer) error {
				fmt.Fprintf(w, "Good signature from key %s\n", v.Signature.KeyID)
				for _, name := range v.Checked {
					fmt.Fprintf(w, "OK      %s\n", name)
				}
				for _, name := range v.Missing {
					fmt.Fprintf(w, "MISSING %s\n", name)
				}
				return nil
			})
		},
	}
	verify.Flags().StringVarP(&keyringPath, "keyring", "k", "", "OpenPGP keyring, armored or binary")
	verify.MarkFlagRequired("keyring")

	var compileKey string
	compile := &cobra.Command{
		Use:   "compile MANIFEST",
		Short: "Build the packages of a repository manifest and write the repository",
		Long: `Build the packages of a repository manifest and write the repository.

The manifest is a YAML or JSON file naming the output path, the Release
fields, and the package definitions to build. Packages already present in
the output directory are kept. One JSON event is printed per package.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := manifest.LoadRepository(args[0])
			if err != nil {
				return err
			}
			if compileKey == "" {
				compileKey = cfg.Repo.SigningKey
			}
			signer, err := loadSigner(compileKey)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, err = def.Compile(signer, func(e fmt.Stringer) {
				fmt.Fprintln(w, e)
			})
			return err
		},
	}
	compile.Flags().StringVar(&compileKey, "sign-key", "", "ASCII-armored private key used to sign InRelease")

	var (
		purgeKey                  string
		nameRe, versionRe, archRe string
		keepMax                   int
		byUpstream                bool
	)
	purge := &cobra.Command{
		Use:   "purge REPO",
		Short: "Remove old package versions from a repository directory or .tar.gz",
		Long: `Remove old package versions from a repository directory or .tar.gz.

Matching packages are grouped by name and architecture, and only the
--keep-max most recent versions of each group are retained. With
--by-upstream, versions are counted by upstream version so that every
revision of a retained upstream version is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repo.PurgeFilter{KeepMax: keepMax, ByUpstream: byUpstream}
			for _, f := range []struct {
				dst **regexp.Regexp
				src string
			}{{&filter.Name, nameRe}, {&filter.Version, versionRe}, {&filter.Arch, archRe}} {
				if f.src == "" {
					continue
				}
				re, err := regexp.Compile(f.src)
				if err != nil {
					return errors.Wrapf(err, "invalid pattern %q", f.src)
				}
				*f.dst = re
			}
			if purgeKey == "" {
				purgeKey = cfg.Repo.SigningKey
			}
			signer, err := loadSigner(purgeKey)
			if err != nil {
				return err
			}

			path := args[0]
			archive := strings.HasSuffix(path, ".tar.gz")
			r, err := openRepository(path, archive)
			if err != nil {
				return err
			}
			r.Signer = signer
			removed := r.Purge(filter)
			for _, p := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s %s\n", p.Metadata.Package, p.Metadata.Version, p.Metadata.Architecture)
			}
			if archive {
				return saveRepository(r, path)
			}
			for _, p := range removed {
				if err := os.Remove(filepath.Join(path, p.StandardFilename())); err != nil && !errors.Is(err, os.ErrNotExist) {
					return errors.Wrap(err, "removing purged package")
				}
			}
			return r.WriteToDir(path)
		},
	}
	purge.Flags().StringVar(&purgeKey, "sign-key", "", "ASCII-armored private key used to sign InRelease")
	purge.Flags().StringVar(&nameRe, "name", "", "regular expression selecting package names")
	purge.Flags().StringVar(&versionRe, "version", "", "regular expression selecting versions")
	purge.Flags().StringVar(&archRe, "arch", "", "regular expression selecting architectures")
	purge.Flags().IntVar(&keepMax, "keep-max", -1, "versions retained per package and architecture, negative to remove all matches")
	purge.Flags().BoolVar(&byUpstream, "by-upstream", false, "count upstream versions instead of full versions")

	patch := &cobra.Command{
		Use:   "patch FILE PDIFF...",
		Short: "Apply pdiff ed scripts, in order, to an index file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := repo.UpdateFile(args[0], args[1:]...)
			if err != nil {
				return err
			}
			slog.Info("index patched", "file", args[0], "patches", len(args)-1)
			return printResult(cmd.OutOrStdout(), map[string]string{"sha1": sum}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, sum)
				return err
			})
		},
	}

	cmd.AddCommand(build, verify, compile, purge, patch)
	return cmd
}

// openRepository reads a flat repository from a directory or a .tar.gz.
func openRepository(path string, archive bool) (*repo.Repository, error) {
	if !archive {
		return repo.NewRepositoryFromDir(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return repo.NewRepository(f)
}

func saveRepository(r *repo.Repository, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// mergeInfo returns base with the non-empty fields of override applied.
func mergeInfo(base, override repo.ArchiveInfo) repo.ArchiveInfo {
	for _, f := range []struct{ dst, src *string }{
		{&base.Origin, &override.Origin},
		{&base.Label, &override.Label},
		{&base.Suite, &override.Suite},
		{&base.Codename, &override.Codename},
		{&base.Architectures, &override.Architectures},
		{&base.Components, &override.Components},
		{&base.Description, &override.Description},
	} {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
	return base
}
