package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lifesignal/internal/config"
	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/output"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (defaults, file and env overrides)",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config.json to the config directory",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config.json")
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	if done, err := rt.emit(rt.cfg); done {
		return err
	}
	rt.printer.Header("Configuration (" + rt.home + ")")
	return output.WriteJSON(rt.printer.Out(), rt.cfg)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	path := filepath.Join(rt.home, "config.json")
	if _, err := os.Stat(path); err == nil && !configForce {
		return lserrors.New(lserrors.ConfigInvalid, fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
	}
	if err := config.DefaultConfig().Save(rt.home); err != nil {
		return err
	}
	rt.printer.Success("Wrote default configuration to %s", path)
	return nil
}
