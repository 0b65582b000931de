package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lifesignal/internal/catalog"
	lserrors "lifesignal/internal/errors"
)

var (
	catalogPath  string
	catalogForce bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the source catalog",
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in source catalog to a TOML file for editing",
	RunE:  runCatalogInit,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective catalog (built-in entries merged with the file)",
	RunE:  runCatalogShow,
}

func init() {
	catalogInitCmd.Flags().StringVar(&catalogPath, "path", "", "Catalog file (default <config-dir>/catalog.toml)")
	catalogInitCmd.Flags().BoolVar(&catalogForce, "force", false, "Overwrite an existing file")
	catalogCmd.AddCommand(catalogInitCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogInit(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	path := catalogPath
	if path == "" {
		path = rt.catalogPath()
	}
	if _, err := os.Stat(path); err == nil && !catalogForce {
		return lserrors.New(lserrors.CatalogInvalid, fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
	}
	if err := catalog.Write(path, catalog.Defaults()); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	rt.printer.Success("Wrote %d sources to %s", len(catalog.Defaults()), path)
	return nil
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	cat, err := rt.loadCatalog()
	if err != nil {
		return err
	}
	if done, err := rt.emit(cat.Entries()); done {
		return err
	}
	data, err := catalog.Encode(cat.Entries())
	if err != nil {
		return err
	}
	_, err = rt.printer.Out().Write(data)
	return err
}
