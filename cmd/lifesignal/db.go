package main

import (
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the tracker tables",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the tracker tables the built-in catalog reads",
	Long: `Create the tracker tables and indexes in the configured store. Existing
tables are left untouched, so the command is safe to run repeatedly.`,
	RunE: runDBInit,
}

func init() {
	dbCmd.AddCommand(dbInitCmd)
	rootCmd.AddCommand(dbCmd)
}

func runDBInit(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	db, err := rt.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if err := db.InitSourceSchema(ctx); err != nil {
		return err
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	rt.printer.Success("Schema ready (%s, version %d)", rt.cfg.Storage.Driver, version)
	return nil
}
