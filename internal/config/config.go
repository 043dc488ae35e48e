// Package config builds the immutable build configuration for torx using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// The positional arguments select the build mode: a path ending in the
// template extension is compiled on its own, any other path is treated as a
// source folder and compiled as a batch. Watch mode is a flag. The resulting
// Config is a plain value; nothing mutates it once Load returns.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	torxerrors "github.com/conneroisu/torx/internal/errors"
	"github.com/conneroisu/torx/internal/logging"
)

// Mode is the build mode selected by the configuration.
type Mode int

const (
	ModeSingle Mode = iota
	ModeBatch
	ModeWatch
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeBatch:
		return "batch"
	case ModeWatch:
		return "watch"
	default:
		return "unknown"
	}
}

// Compiler backends.
const (
	BackendTempl   = "templ"
	BackendCommand = "command"
)

type Config struct {
	SourceFile         string `mapstructure:"-"`
	SourceFolder       string `mapstructure:"-"`
	DistributionFolder string `mapstructure:"-"`

	Watch      WatchConfig      `mapstructure:"watch"`
	Build      BuildConfig      `mapstructure:"build"`
	Compiler   CompilerConfig   `mapstructure:"compiler"`
	LiveReload LiveReloadConfig `mapstructure:"livereload"`
	Log        LogConfig        `mapstructure:"log"`
}

type WatchConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Recursive  bool `mapstructure:"recursive"`
	BuildAdded bool `mapstructure:"build_added"`
}

type BuildConfig struct {
	Extension string   `mapstructure:"extension"`
	Jobs      int      `mapstructure:"jobs"`
	Atomic    bool     `mapstructure:"atomic"`
	DryRun    bool     `mapstructure:"dry_run"`
	Ignore    []string `mapstructure:"ignore"`
	Report    string   `mapstructure:"report"`
}

type CompilerConfig struct {
	Backend string   `mapstructure:"backend"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

type LiveReloadConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EnvPrefix prefixes every environment override, e.g. TORX_BUILD_JOBS.
const EnvPrefix = "TORX"

// NewViper returns a viper instance with defaults and automatic TORX_*
// environment variable binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	return v
}

// SetDefaults registers every configuration key with its default value.
// Keys must be known to viper for TORX_* environment overrides to apply.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.recursive", false)
	v.SetDefault("watch.build_added", false)

	v.SetDefault("build.extension", ".torx")
	v.SetDefault("build.jobs", runtime.NumCPU())
	v.SetDefault("build.atomic", true)
	v.SetDefault("build.dry_run", false)
	v.SetDefault("build.ignore", []string{".git", "node_modules"})
	v.SetDefault("build.report", "")

	v.SetDefault("compiler.backend", BackendTempl)
	v.SetDefault("compiler.command", "")
	v.SetDefault("compiler.args", []string{})

	v.SetDefault("livereload.addr", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Load builds the configuration from v and the positional arguments
// [source-file-or-folder] [distribution-folder].
func Load(v *viper.Viper, args []string) (Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, torxerrors.NewConfigError(torxerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid configuration: %v", err))
	}

	// Handle ignore patterns set via viper (workaround for viper slice handling)
	if v.IsSet("build.ignore") && len(config.Build.Ignore) == 0 {
		config.Build.Ignore = v.GetStringSlice("build.ignore")
	}

	if err := applyArgs(&config, args); err != nil {
		return Config{}, err
	}

	if err := validateConfig(&config); err != nil {
		return Config{}, err
	}

	return config, nil
}

func applyArgs(config *Config, args []string) error {
	if len(args) > 2 {
		return torxerrors.NewConfigError(torxerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unexpected argument '%s'", args[2]))
	}

	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return torxerrors.NewConfigError(torxerrors.ErrCodeSourceMissing,
			"At least source file or argument is required.")
	}

	source := filepath.Clean(args[0])
	if strings.HasSuffix(source, config.Build.Extension) && config.Build.Extension != "" {
		config.SourceFile = source
		config.SourceFolder = filepath.Dir(source)
	} else {
		config.SourceFolder = source
	}

	if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
		config.DistributionFolder = filepath.Clean(args[1])
	}

	return nil
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateBuildConfig(&config.Build); err != nil {
		return err
	}

	if err := validateCompilerConfig(&config.Compiler); err != nil {
		return err
	}

	return validateLogConfig(&config.Log)
}

func validateBuildConfig(config *BuildConfig) error {
	if len(config.Extension) < 2 || !strings.HasPrefix(config.Extension, ".") {
		return invalid("build.extension must start with '.', got %q", config.Extension)
	}

	if strings.ContainsAny(config.Extension, `/\`) {
		return invalid("build.extension must not contain path separators: %q", config.Extension)
	}

	if config.Jobs < 1 {
		return invalid("build.jobs must be at least 1, got %d", config.Jobs)
	}

	for _, pattern := range config.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return invalid("build.ignore pattern %q is malformed", pattern)
		}
	}

	return nil
}

func validateCompilerConfig(config *CompilerConfig) error {
	switch config.Backend {
	case BackendTempl:
	case BackendCommand:
		if strings.TrimSpace(config.Command) == "" {
			return invalid("compiler.command is required for the %q backend", BackendCommand)
		}
	default:
		return invalid("unknown compiler backend %q (supported: %s, %s)",
			config.Backend, BackendTempl, BackendCommand)
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return invalid("log.level: %v", err)
	}

	switch config.Format {
	case "text", "json":
	default:
		return invalid("unknown log format %q (supported: text, json)", config.Format)
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return torxerrors.NewConfigError(torxerrors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...))
}

// Mode returns the build mode. Watch takes precedence over the others.
func (c Config) Mode() Mode {
	switch {
	case c.Watch.Enabled:
		return ModeWatch
	case c.SourceFile != "":
		return ModeSingle
	default:
		return ModeBatch
	}
}

// OutputPath derives the output path for one source file: the distribution
// folder (or the source's own folder when unset) joined with the source's
// base name, template extension stripped. Sources below SourceFolder keep
// their relative sub-directory under the distribution folder.
func (c Config) OutputPath(sourcePath string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), c.Build.Extension)

	if c.DistributionFolder == "" {
		return filepath.Join(filepath.Dir(sourcePath), base)
	}

	dir := "."
	if c.SourceFile == "" {
		if rel, err := filepath.Rel(c.SourceFolder, filepath.Dir(sourcePath)); err == nil && !escapes(rel) {
			dir = rel
		}
	}

	return filepath.Join(c.DistributionFolder, dir, base)
}

// escapes reports whether a relative path leaves its base directory. A
// directory merely named like "..drafts" stays inside.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
