package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/etnz/go-debian/archtable"
	"github.com/etnz/go-debian/repo"
)

// LogConfig selects the level and format of the default logger.
//
//	[log]
//	level = "warn"
//	format = "json"
//
//	[log.commands]
//	repo = "debug"
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
	// Source adds the file and line of the logging call.
	Source bool `toml:"source" yaml:"source" json:"source"`
	// Commands overrides Level for top-level commands, by name.
	Commands map[string]string `toml:"commands" yaml:"commands" json:"commands"`
}

var logHandlers = map[string]func(io.Writer, *slog.HandlerOptions) slog.Handler{
	"":      func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
	"text":  func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
	"plain": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
	"json":  func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
}

// parseLevel accepts the slog names ("debug", "INFO+2") and "warning".
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	switch strings.ToLower(s) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Newf("invalid log level: %s", s)
	}
	return level, nil
}

// levelFor returns the level of the named top-level command.
func (logConfig *LogConfig) levelFor(command string) (slog.Level, error) {
	if l, ok := logConfig.Commands[command]; ok {
		return parseLevel(l)
	}
	return parseLevel(logConfig.Level)
}

// NewLogger returns the logger used while running command.
func (logConfig *LogConfig) NewLogger(w io.Writer, command string) (*slog.Logger, error) {
	level, err := logConfig.levelFor(command)
	if err != nil {
		return nil, err
	}
	newHandler, ok := logHandlers[strings.ToLower(logConfig.Format)]
	if !ok {
		return nil, errors.Newf("invalid log format: %s", logConfig.Format)
	}
	return slog.New(newHandler(w, &slog.HandlerOptions{Level: level, AddSource: logConfig.Source})), nil
}

// ArchTableConfig locates the dpkg architecture tables.
type ArchTableConfig struct {
	Dir string `toml:"dir" yaml:"dir" json:"dir"`
}

// RepoConfig holds defaults for "repo build".
type RepoConfig struct {
	repo.ArchiveInfo `yaml:",inline"`
	// SigningKey is the path of an ASCII-armored private key. The
	// GPG_PRIVATE_KEY environment variable is used when empty.
	SigningKey string `toml:"signing_key" yaml:"signing_key" json:"signing_key"`
}

// Config is the debmeta configuration file.
type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log" json:"log"`
	ArchTable ArchTableConfig `toml:"archtable" yaml:"archtable" json:"archtable"`
	Repo      RepoConfig      `toml:"repo" yaml:"repo" json:"repo"`
	Jobs      int             `toml:"jobs" yaml:"jobs" json:"jobs"`
}

// NewConfig creates Config with default values.
func NewConfig() *Config {
	return &Config{ArchTable: ArchTableConfig{Dir: archtable.DefaultDir}}
}

// LoadConfig reads a configuration file, selecting the decoder by
// extension. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, c)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, errors.Newf("%s: unknown configuration keys: %s", path, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
	default:
		return nil, errors.Newf("%s: unsupported configuration format", path)
	}
	return c, nil
}
