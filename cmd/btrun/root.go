package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/joeycumines/btcore/internal/config"
	"github.com/joeycumines/btcore/internal/leaves"
	"github.com/joeycumines/btcore/internal/logging"
	"github.com/spf13/cobra"
)

// app is the state shared by the commands of one invocation.
type app struct {
	stdout, stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string

	cfg      *config.Config
	schema   *config.ConfigSchema
	settings config.Settings
	logger   *slog.Logger
	closer   io.Closer
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, schema: config.DefaultSchema()}
}

// execute runs the command line args. The log file opened by setup is closed
// on return, whether or not the command failed.
func (a *app) execute(ctx context.Context, args []string) (err error) {
	defer func() { err = errors.Join(err, a.close()) }()
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "btrun",
		Short: "Run behavior trees described in YAML",
		Long: `btrun builds behavior trees from a YAML document and ticks them at a fixed
period until they complete, reach a tick limit, or are interrupted.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $BTRUN_CONFIG or ~/.btrun/config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text, json")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads the configuration and opens the logger. Flags override both
// the config file and the environment.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFromPath(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	a.settings, err = a.schema.Settings(a.cfg)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		a.settings.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		a.settings.LogFormat = a.logFormat
	}
	leaves.SetProgramCacheSize(a.settings.ExprCacheSize)
	a.logger, a.closer, err = logging.Open(logging.Options{
		Level:     a.settings.LogLevel,
		Format:    a.settings.LogFormat,
		File:      a.settings.LogFile,
		MaxSizeMB: a.settings.LogMaxSizeMB,
		MaxFiles:  a.settings.LogMaxFiles,
		Writer:    a.stderr,
	})
	return err
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	c := a.closer
	a.closer = nil
	return c.Close()
}
