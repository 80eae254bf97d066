// Command debmeta inspects and edits Debian metadata: deb822 control
// files, changelogs, .deb archives, versions, debtags databases, machine
// readable copyright files, dpkg architectures, substvars, watch files and
// flat APT repositories.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	// Build information, set via -ldflags.
	buildVersion = "dev"
	commit       = "unknown"

	configPath    string
	logLevel      string
	outputFormat  string
	verboseErrors bool
	jobs          int

	// cfg is loaded before any subcommand runs.
	cfg = NewConfig()
)

var rootCmd = &cobra.Command{
	Use:   "debmeta",
	Short: "Inspect Debian package metadata",
	Long: `debmeta reads and writes the metadata files found in Debian packages
and repositories.

Examples:
  debmeta control dump debian/control
  debmeta deb info hello_1.0-1_amd64.deb --output json
  debmeta version compare 1.0-1 1:0.9
  debmeta repo build ./dist *.deb`,
	Version:           buildVersion + " (" + commit + ")",
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (.toml, .yaml or .json)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&verboseErrors, "verbose-errors", false, "show detailed error information including stack traces")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 0, "number of files processed concurrently (default: config, then CPU count)")

	rootCmd.AddCommand(
		newControlCmd(),
		newChangelogCmd(),
		newDebCmd(),
		newVersionCmd(),
		newTagsCmd(),
		newCopyrightCmd(),
		newArchCmd(),
		newSubstvarsCmd(),
		newWatchCmd(),
		newRepoCmd(),
	)
}

// setup loads the configuration and applies global flags. Arguments have
// been validated at this point, so later failures do not print usage.
func setup(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	if configPath != "" {
		c, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		cfg.Log.Commands = nil
	}
	logger, err := cfg.Log.NewLogger(os.Stderr, topCommand(cmd).Name())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if !validOutput(outputFormat) {
		return errors.Newf("invalid output format %q", outputFormat)
	}
	if jobs <= 0 {
		jobs = cfg.Jobs
	}
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	slog.Debug("configuration loaded", "path", configPath, "jobs", jobs, "output", outputFormat)
	return nil
}

// topCommand returns the child of the root that cmd belongs to.
func topCommand(cmd *cobra.Command) *cobra.Command {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd
}

// formatError returns a human-friendly error message, optionally with stack trace
func formatError(err error, verbose bool) string {
	if verbose {
		return fmt.Sprintf("%+v", err)
	}
	if flattened := errors.FlattenDetails(err); flattened != "" {
		return flattened
	}
	return err.Error()
}

func main() {
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", formatError(err, verboseErrors))
		os.Exit(1)
	}
}
