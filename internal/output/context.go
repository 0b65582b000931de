package output

import (
	"sort"
	"strconv"
	"strings"

	"lifesignal/internal/envelope"
)

// RenderContext prints a Context for a terminal reader. Sources are listed
// in the same ranking the size budget uses. Results print in quiet mode too.
func RenderContext(p *Printer, c *envelope.Context) error {
	p = p.loud()

	p.Header("Context (" + string(c.Mode) + ")")
	p.Print("Reference date:  %s", c.ReferenceDate)
	p.Print("Window:          %s (%d days)", c.Windows.Current, c.Windows.Current.SpanDays())
	if c.Windows.Baseline != nil {
		p.Print("Baseline:        %s", *c.Windows.Baseline)
	}
	if c.Topic != nil {
		p.Print("Topic:           %s %s", p.Bold(c.Topic.RawQuery), p.Dim("["+strings.Join(c.Topic.Keywords, ", ")+"]"))
	}

	if len(c.Sources) > 0 {
		p.Header("Signals")
		t := NewTable(p.out, "Source", "Kind", "Records", "Volume", "Active", "Streak", "Momentum", "Phase", "Confidence")
		for _, id := range rankedIDs(c) {
			b := c.Sources[id]
			streak := strconv.Itoa(b.CurrentStreakDays) + "/" + strconv.Itoa(b.LongestStreakDays)
			momentum := p.Momentum(string(b.Momentum))
			if b.ChangePct != nil {
				momentum += " " + FormatChange(b.ChangePct)
			}
			t.AddRow(
				id,
				b.Kind,
				strconv.Itoa(b.RecordCount),
				FormatQuantity(b.Volume, b.Unit),
				strconv.Itoa(b.ActiveDays)+"d ("+FormatRatio(b.ActiveDayRatio)+")",
				streak,
				momentum,
				string(b.Phase),
				b.Confidence,
			)
		}
		if err := t.Render(); err != nil {
			return err
		}
	}

	p.Header("Coverage")
	p.Print("Matched: %s", joinOrNone(c.Coverage.MatchedSources))
	p.Print("Silent:  %s", joinOrNone(c.Coverage.SilentSources))
	for _, e := range c.Coverage.Errors {
		p.Warning("%s unavailable: %s", e.SourceID, e.Message)
	}
	if tr := c.Truncation; tr != nil {
		p.Print("%s", p.Dim("Truncated: showing "+strconv.Itoa(tr.Shown)+" of "+strconv.Itoa(tr.Total)+" sources ("+strings.Join(tr.Reasons, ", ")+")"))
	}
	for _, w := range c.Warnings {
		p.Warning("%s", w.Message)
	}
	return nil
}

// RenderNarration prints narrated prose under a header.
func RenderNarration(p *Printer, text string) {
	p = p.loud()
	p.Header("Answer")
	p.Print("%s", strings.TrimSpace(text))
}

func rankedIDs(c *envelope.Context) []string {
	ids := make([]string, 0, len(c.Sources))
	for id := range c.Sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := c.Sources[ids[i]], c.Sources[ids[j]]
		if a.ActiveDayRatio != b.ActiveDayRatio {
			return a.ActiveDayRatio > b.ActiveDayRatio
		}
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		return ids[i] < ids[j]
	})
	return ids
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
