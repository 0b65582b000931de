package narration

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"lifesignal/internal/envelope"
	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/llm"
	"lifesignal/internal/signals"
	"lifesignal/internal/testutil"
	"lifesignal/internal/topic"
)

func focusContext(t *testing.T) *envelope.Context {
	t.Helper()
	c, err := envelope.New(envelope.ModeFocus, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)).
		Topic(&topic.Topic{RawQuery: "learning Portuguese", Keywords: []string{"portuguese", "duolingo"}}).
		AddBundle("toggl", signals.Bundle{Kind: "time", Unit: "minutes", Presence: true, RecordCount: 4, Volume: 120, ActiveDays: 3, Momentum: signals.NoMomentum}).
		AddSilent("asana").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestOpenAI_Narrate(t *testing.T) {
	srv := testutil.NewChatServer(t, func(testutil.ChatRequest) testutil.ChatReply {
		return testutil.ChatReply{Content: "  Overall Assessment: steady.  "}
	})
	n := NewOpenAI(llm.New(llm.Config{BaseURL: srv.URL, Model: "test-model"}, nil))

	got, err := n.Narrate(context.Background(), Request{Context: focusContext(t), Mode: envelope.ModeFocus})
	if err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if got != "Overall Assessment: steady." {
		t.Errorf("narration = %q", got)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 || len(reqs[0].Messages) != 2 {
		t.Fatalf("requests = %+v", reqs)
	}
	if reqs[0].Model != "test-model" {
		t.Errorf("model = %q", reqs[0].Model)
	}
	system, user := reqs[0].Messages[0], reqs[0].Messages[1]
	if system.Role != "system" || !strings.Contains(system.Content, "reporting layer") {
		t.Errorf("system message = %+v", system)
	}
	for _, want := range []string{
		`"sources":{"toggl"`,
		`"silentSources":["asana"]`,
		"7) Confidence",
		"Topic: learning Portuguese",
		"Question: How am I doing on learning Portuguese?",
	} {
		if !strings.Contains(user.Content, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestOpenAI_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply testutil.ChatReply
	}{
		{"server error", testutil.ChatReply{Status: http.StatusInternalServerError}},
		{"empty reply", testutil.ChatReply{Content: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewChatServer(t, func(testutil.ChatRequest) testutil.ChatReply { return tt.reply })
			n := NewOpenAI(llm.New(llm.Config{BaseURL: srv.URL}, nil))

			_, err := n.Narrate(context.Background(), Request{Context: focusContext(t)})
			if !lserrors.HasCode(err, lserrors.NarrationUnavailable) {
				t.Errorf("error = %v, want NarrationUnavailable", err)
			}
		})
	}
}

type stubCompleter struct {
	user string
	err  error
}

func (s *stubCompleter) Complete(_ context.Context, _, user string) (string, error) {
	s.user = user
	return "ok", s.err
}

func TestOpenAI_NoContext(t *testing.T) {
	stub := &stubCompleter{}
	_, err := NewOpenAI(stub).Narrate(context.Background(), Request{})
	if !lserrors.HasCode(err, lserrors.NarrationUnavailable) {
		t.Errorf("error = %v", err)
	}
	if stub.user != "" {
		t.Error("completer must not be called without a context")
	}
}

func TestOpenAI_CancelledContext(t *testing.T) {
	stub := &stubCompleter{err: context.DeadlineExceeded}
	_, err := NewOpenAI(stub).Narrate(context.Background(), Request{Context: focusContext(t)})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause should be preserved, got %v", err)
	}
}

func TestUserPrompt_Questions(t *testing.T) {
	summary, err := envelope.New(envelope.ModeSummary, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)).Build()
	if err != nil {
		t.Fatal(err)
	}
	progress, err := envelope.New(envelope.ModeProgress, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)).Build()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{"explicit question", Request{Context: summary, Question: " What slipped? "}, []string{"Question: What slipped?"}},
		{"summary default", Request{Context: summary}, []string{"Question: How am I doing overall?"}},
		{"progress", Request{Context: progress}, []string{"baseline window", "compared to the previous period"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserPrompt(tt.req)
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("prompt missing %q:\n%s", w, got)
				}
			}
		})
	}
}
