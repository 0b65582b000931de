package main

import (
	"time"

	"github.com/spf13/cobra"

	"lifesignal/internal/output"
)

var snapshotsPrune int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect archived contexts",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived contexts, newest first",
	RunE:  runSnapshotsList,
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <name|path>",
	Short: "Print an archived context",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsShow,
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest archived contexts",
	RunE:  runSnapshotsPrune,
}

func init() {
	snapshotsPruneCmd.Flags().IntVar(&snapshotsPrune, "keep", 10, "Number of snapshots to keep")
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsShowCmd, snapshotsPruneCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

// snapshotRow is one row of the snapshot listing.
type snapshotRow struct {
	Name      string    `json:"name" yaml:"name"`
	RunID     string    `json:"runId" yaml:"runId"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	Size      int64     `json:"size" yaml:"size"`
}

func runSnapshotsList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	entries, err := rt.snapshotStore().List()
	if err != nil {
		return err
	}
	rows := make([]snapshotRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, snapshotRow{Name: e.Name, RunID: e.RunID, CreatedAt: e.CreatedAt, Size: e.Size})
	}
	if done, err := rt.emit(rows); done {
		return err
	}

	if len(rows) == 0 {
		rt.printer.Info("No snapshots in %s", rt.snapshotStore().Dir())
		return nil
	}
	t := output.NewTable(rt.printer.Out(), "Name", "Run ID", "Created", "Size")
	for _, r := range rows {
		t.AddRow(r.Name, r.RunID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), output.FormatQuantity(float64(r.Size), "bytes"))
	}
	return t.Render()
}

func runSnapshotsShow(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	rec, err := rt.snapshotStore().Load(args[0])
	if err != nil {
		return err
	}
	if done, err := rt.emit(rec); done {
		return err
	}

	p := rt.printer
	p.Print("Run %s at %s", rec.RunID, rec.CreatedAt.Local().Format(time.RFC3339))
	if rec.Question != "" {
		p.Print("Question: %s", rec.Question)
	}
	if err := output.RenderContext(p, rec.Context); err != nil {
		return err
	}
	if rec.NarrationError != "" {
		p.Warning("narration failed: %s", rec.NarrationError)
	}
	return nil
}

func runSnapshotsPrune(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	removed, err := rt.snapshotStore().Prune(snapshotsPrune)
	if err != nil {
		return err
	}
	rt.printer.Success("Removed %d snapshots", removed)
	return nil
}
