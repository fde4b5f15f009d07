// Package main is the entry point for the desk shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/desk/internal/app"
	"github.com/dshills/desk/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions are the flags shared by the shell and its subcommands.
type rootOptions struct {
	configPath string
	logLevel   string
	logFile    string
	debug      bool
	platform   string
	scripts    []string
	autostart  []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "desk",
		Short: "desk - a keyboard driven desktop in your terminal",
		Long: `desk runs a small desktop of applications inside the terminal.
Applications are opened from the launcher (Control+X L), closed with
Control+W and driven entirely by configurable keybindings.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runShell(cmd.Context(), cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to configuration file (default "+config.DefaultPath()+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "file receiving log output")
	flags.BoolVar(&opts.debug, "debug", false, "development logging at debug level")
	flags.StringVar(&opts.platform, "platform", "", "modifier platform (auto, apple, windows, other)")
	cmd.Flags().StringSliceVarP(&opts.scripts, "script", "s", nil, "additional Lua script to load (repeatable)")
	cmd.Flags().StringSliceVar(&opts.autostart, "open", nil, "application key to open at startup (repeatable)")

	cmd.AddCommand(
		newParseCmd(opts),
		newKeymapCmd(opts),
		newAppsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and applies flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	path := o.configPath
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.LoadOptional(config.DefaultPath())
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}

	if o.debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	if o.platform != "" {
		cfg.Platform = o.platform
	}
	cfg.Scripts.Files = append(cfg.Scripts.Files, o.scripts...)
	cfg.Apps.Autostart = append(cfg.Apps.Autostart, o.autostart...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runShell runs the desk until quit or SIGINT/SIGTERM.
func runShell(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer application.Shutdown()

	if err := application.Run(ctx); err != nil && !errors.Is(err, app.ErrQuit) {
		return err
	}
	return nil
}
