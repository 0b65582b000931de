package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"lifesignal/internal/catalog"
	"lifesignal/internal/output"
	"lifesignal/internal/sources"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List catalog sources with enablement and reachability",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

// sourceStatus is one row of the sources listing.
type sourceStatus struct {
	ID        string       `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Kind      catalog.Kind `json:"kind" yaml:"kind"`
	Table     string       `json:"table" yaml:"table"`
	Unit      string       `json:"unit" yaml:"unit"`
	Enabled   bool         `json:"enabled" yaml:"enabled"`
	Reachable bool         `json:"reachable" yaml:"reachable"`
	Error     string       `json:"error,omitempty" yaml:"error,omitempty"`
}

func runSources(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	cat, err := rt.loadCatalog()
	if err != nil {
		return err
	}
	// Validates unknown IDs in sources.enabled.
	if _, err := cat.Enabled(rt.cfg.Sources.Enabled); err != nil {
		return err
	}

	db, dbErr := rt.openStore()
	if dbErr == nil {
		defer db.Close()
	}

	ctx := cmd.Context()
	var rows []sourceStatus
	for _, e := range cat.Entries() {
		st := sourceStatus{
			ID:      e.ID,
			Name:    e.Name,
			Kind:    e.Kind,
			Table:   e.Table,
			Unit:    e.Metric.Unit,
			Enabled: catalog.IsEnabled(rt.cfg.Sources.Enabled, e.ID),
		}
		if dbErr != nil {
			st.Error = dbErr.Error()
		} else {
			ok, err := sources.NewSQLSource(e, db, rt.cfg.Pipeline.QueryRowLimit).Reachable(ctx)
			st.Reachable = ok
			if err != nil {
				st.Error = err.Error()
			} else if !ok {
				st.Error = "table " + e.Table + " not found"
			}
		}
		rows = append(rows, st)
	}

	if done, err := rt.emit(rows); done {
		return err
	}

	p := rt.printer
	t := output.NewTable(p.Out(), "ID", "Kind", "Table", "Unit", "Enabled", "Reachable")
	for _, r := range rows {
		reach := "yes"
		if !r.Reachable {
			reach = p.Dim("no")
		}
		t.AddRow(r.ID, string(r.Kind), r.Table, r.Unit, strconv.FormatBool(r.Enabled), reach)
	}
	if err := t.Render(); err != nil {
		return err
	}
	if dbErr != nil {
		p.Warning("storage unavailable: %v", dbErr)
	}
	return nil
}
