package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/desk/internal/app"
	"github.com/dshills/desk/internal/input/key"
	"github.com/dshills/desk/internal/input/keymap"
)

func newParseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <keybinding>",
		Short: "Show how a keybinding string is parsed",
		Example: `  desk parse '$mod+K $mod+1'
  desk parse --platform apple 'Control+X Shift+Tab'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := key.ParsePlatform(opts.platform)
			if err != nil {
				return err
			}

			presses := key.ParseFor(platform, args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", key.FormatSequence(presses), platform)
			for i, p := range presses {
				mods := "-"
				if len(p.Mods) > 0 {
					mods = strings.Join(p.Mods, ", ")
				}
				fmt.Fprintf(out, "  %d. key=%q mods=%s\n", i+1, p.Key, mods)
			}
			return nil
		},
	}
}

func newKeymapCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keymap",
		Short: "Inspect and validate keymaps",
	}

	check := &cobra.Command{
		Use:   "check <file>...",
		Short: "Validate keymap files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := keymap.NewLoader()
			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				km, err := loader.LoadFile(path)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: %d bindings\n", path, len(km))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d keymaps invalid", failed, len(args))
			}
			return nil
		},
	}

	var format string
	var merged bool
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the built-in keymap",
		Long: `Print the built-in keymap. With --merged the configured keymap file
is merged over it first, showing the bindings the shell will use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := keymap.ParseFormat(format)
			if err != nil {
				return err
			}

			km := keymap.Default()
			if merged {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				file, err := keymap.NewLoader().LoadFile(cfg.Keymap.Path)
				switch {
				case err == nil:
					km = km.Merge(file)
				case !errors.Is(err, fs.ErrNotExist):
					return err
				}
			}
			return keymap.Encode(cmd.OutOrStdout(), km, f)
		},
	}
	dump.Flags().StringVarP(&format, "format", "f", "toml", "output format (toml, yaml, json)")
	dump.Flags().BoolVar(&merged, "merged", false, "merge the configured keymap file")

	cmd.AddCommand(check, dump)
	return cmd
}

func newAppsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List the installed applications",
		Long:  "List the built-in applications and those registered by scripts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.Keymap.Watch = false
			cfg.Apps.Autostart = nil

			application, err := app.New(cfg, app.WithLogger(zap.NewNop()))
			if err != nil {
				return err
			}
			defer application.Shutdown()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tLOCATION\tWINDOW\tDESCRIPTION")
			for _, d := range application.Catalog().List() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", d.Key, d.Title(), d.Location, d.HasWindow(), d.Description)
			}
			return w.Flush()
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of desk",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "desk %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
