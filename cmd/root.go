// Package cmd provides the torx command-line interface.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--watch, --jobs, --compiler, ...)
//  2. TORX_* environment variables (TORX_BUILD_JOBS, TORX_WATCH_RECURSIVE, ...)
//  3. The configuration file: --config, then TORX_CONFIG_FILE, then .torx.yml
//     in the working directory
//  4. Built-in defaults
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/torx/internal/build"
	"github.com/conneroisu/torx/internal/compiler"
	"github.com/conneroisu/torx/internal/config"
	torxerrors "github.com/conneroisu/torx/internal/errors"
	"github.com/conneroisu/torx/internal/livereload"
	"github.com/conneroisu/torx/internal/logging"
	"github.com/conneroisu/torx/internal/report"
	"github.com/conneroisu/torx/internal/version"
)

// reportedError marks an error the build already printed.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// Execute runs the torx command with the process arguments. It returns an
// error when the process should exit with status 1.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var reported reportedError
	if !errors.As(err, &reported) {
		report.New(stdout, stderr).Error(errors.New(userMessage(err)))
	}

	return err
}

// userMessage drops the error code from configuration errors, which are
// addressed to the person typing the command.
func userMessage(err error) string {
	var te *torxerrors.TorxError
	if errors.As(err, &te) && te.Type == torxerrors.ErrorTypeConfig {
		return te.Message
	}
	return err.Error()
}

// NewRootCommand creates the torx command writing build output to stdout and
// errors and diagnostics to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "torx [source-file-or-folder] [distribution-folder]",
		Short: "Compile template files once, as a batch, or on every change",
		Long: `torx compiles template source files into output files.

A source path ending in the template extension (default .torx) is compiled on
its own. Any other path is a folder: every template below it is compiled, and
the output keeps the folder layout under the distribution folder. Without a
distribution folder each output is written next to its source, named after
the source with the template extension removed.

Examples:
  torx pages/index.html.torx            # writes pages/index.html
  torx pages dist                       # compiles every template under pages/
  torx pages dist --watch               # rebuilds templates as they change
  torx pages dist -w --live-reload :35729`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, cfgFile, args, stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate(version.String() + "\n")

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.BoolP("version", "v", false, "print name@version and exit")
	flags.BoolP("watch", "w", false, "watch the source for changes and rebuild")
	flags.BoolP("dry-run", "d", false, "compile without writing output files")
	flags.StringVar(&cfgFile, "config", "", "config file (default is .torx.yml, can also use TORX_CONFIG_FILE env var)")
	flags.IntP("jobs", "j", runtime.NumCPU(), "number of templates compiled concurrently")
	flags.String("ext", ".torx", "template file extension")
	flags.String("compiler", config.BackendTempl, "compiler backend (templ, command)")
	flags.Bool("recursive", false, "watch sub-directories too")
	flags.String("live-reload", "", "serve browser live reload on this address in watch mode")
	flags.String("report", "", "write a YAML build report to this file")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	bindFlags(v, flags)

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	bindings := map[string]string{
		"watch.enabled":    "watch",
		"watch.recursive":  "recursive",
		"build.dry_run":    "dry-run",
		"build.jobs":       "jobs",
		"build.extension":  "ext",
		"build.report":     "report",
		"compiler.backend": "compiler",
		"livereload.addr":  "live-reload",
		"log.level":        "log-level",
		"log.format":       "log-format",
	}

	for key, name := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// readConfigFile loads the configuration file. A missing default .torx.yml
// is not an error; a missing explicit file is.
func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile == "" {
		cfgFile = os.Getenv("TORX_CONFIG_FILE")
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".torx")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return torxerrors.NewConfigError(torxerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("could not read config file: %v", err))
	}

	return nil
}

func run(ctx context.Context, v *viper.Viper, cfgFile string, args []string, stdout, stderr io.Writer) error {
	if err := readConfigFile(v, cfgFile); err != nil {
		return err
	}

	cfg, err := config.Load(v, args)
	if err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: stderr,
	})

	info := version.GetBuildInfo()
	logger.Debug(ctx, "Starting torx",
		"version", info.Version,
		"commit", info.GitCommit,
		"go", info.GoVersion,
		"mode", cfg.Mode().String(),
		"config_file", v.ConfigFileUsed())

	c, err := compiler.New(cfg.Compiler)
	if err != nil {
		return err
	}

	opts := []build.Option{build.WithLogger(logger)}

	if cfg.Mode() == config.ModeWatch && cfg.LiveReload.Addr != "" {
		server := livereload.NewServer(cfg.LiveReload.Addr, logger)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, err, "Live reload server shutdown failed")
			}
		}()
		opts = append(opts, build.WithNotifier(server))
	}

	orchestrator := build.New(cfg, c, report.New(stdout, stderr), opts...)
	if err := orchestrator.Run(ctx); err != nil {
		return reportedError{err: err}
	}

	return nil
}
