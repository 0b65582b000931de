package envelope

import (
	"errors"
	"testing"

	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/testutil"
	"lifesignal/internal/topic"
	"lifesignal/internal/window"
)

// TestGolden_FocusWithoutMatches pins the wire shape of a Context whose
// sources were all silent or unavailable.
func TestGolden_FocusWithoutMatches(t *testing.T) {
	baseline := window.Window{Start: date("2026-01-30"), End: date("2026-03-01")}
	c, err := New(ModeFocus, date("2026-03-31")).
		Topic(&topic.Topic{RawQuery: "learning portuguese", Keywords: []string{"duolingo", "portuguese"}}).
		Windows(window.Pair{
			Current:  window.Window{Start: date("2026-03-01"), End: date("2026-03-31")},
			Baseline: &baseline,
		}).
		Thresholds(Thresholds{MomentumThreshold: 0.15, StreakToleranceDays: 1}).
		AddSilent("toggl").
		AddSilent("asana").
		AddError("habitica", lserrors.NewSourceUnavailable("habitica", errors.New("no such table: habitica_items"))).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	got, err := MarshalIndent(c)
	if err != nil {
		t.Fatal(err)
	}
	testutil.CompareGolden(t, "context_focus_no_matches", got)
}
