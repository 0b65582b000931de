package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"lifesignal/internal/envelope"
	"lifesignal/internal/signals"
	"lifesignal/internal/window"
)

func testContext(t *testing.T) *envelope.Context {
	t.Helper()
	c, err := envelope.New(envelope.ModeSummary, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)).
		Windows(window.Pair{Current: window.Window{
			Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		}}).
		AddBundle("toggl", signals.Bundle{Kind: "time", Unit: "minutes", Presence: true, RecordCount: 3, Volume: 90, ActiveDays: 2, Momentum: signals.NoMomentum}).
		AddSilent("asana").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSaveLoad(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "snapshots"), 0, nil)
	rec := Record{
		RunID:          "3f2a",
		CreatedAt:      time.Date(2026, 3, 31, 8, 15, 0, 0, time.UTC),
		Question:       "How am I doing overall?",
		Context:        testContext(t),
		NarrationError: "timeout",
	}

	path, err := store.Save(rec)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(path) != "20260331T081500Z-3f2a.json.zst" {
		t.Errorf("unexpected name %s", filepath.Base(path))
	}

	for _, ref := range []string{path, filepath.Base(path)} {
		got, err := store.Load(ref)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", ref, err)
		}
		if !reflect.DeepEqual(got, &rec) {
			t.Errorf("Load(%s) = %+v, want %+v", ref, got, rec)
		}
	}
}

func TestSave_RequiresContext(t *testing.T) {
	store := NewStore(t.TempDir(), 0, nil)
	if _, err := store.Save(Record{RunID: "x"}); err == nil {
		t.Error("expected error for record without context")
	}
}

func TestListAndPrune(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 2, nil)
	ctx := testContext(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if _, err := store.Save(Record{RunID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour), Context: ctx}); err != nil {
			t.Fatal(err)
		}
	}
	// Not a snapshot.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 after retention", len(entries))
	}
	if entries[0].RunID != "c" || entries[1].RunID != "b" {
		t.Errorf("order = %s, %s; want newest first", entries[0].RunID, entries[1].RunID)
	}
	if !entries[0].CreatedAt.Equal(base.Add(2*time.Hour)) || entries[0].Size == 0 {
		t.Errorf("entry = %+v", entries[0])
	}

	removed, err := store.Prune(1)
	if err != nil || removed != 1 {
		t.Errorf("Prune = %d, %v", removed, err)
	}
}

func TestList_MissingDir(t *testing.T) {
	entries, err := NewStore(filepath.Join(t.TempDir(), "absent"), 0, nil).List()
	if err != nil || entries != nil {
		t.Errorf("List = %v, %v", entries, err)
	}
}
