// Package narration turns an assembled Context into prose via an
// OpenAI-compatible chat endpoint. The narrator only ever sees the Context.
package narration

import (
	"context"
	"fmt"
	"strings"

	"lifesignal/internal/envelope"
	lserrors "lifesignal/internal/errors"
	"lifesignal/internal/llm"
)

// Sections is the fixed outline every narration follows.
var Sections = []string{
	"Overall Assessment",
	"Evidence Across Platforms",
	"Momentum & Consistency",
	"Strengths",
	"Gaps/Risks",
	"Next Steps",
	"Confidence",
}

const systemPrompt = `You are a reporting layer, not an analyst. Do NOT infer trends beyond the provided context.
Only narrate the context; do not think aloud. If information is missing, say so plainly.
A source listed under coverage.silentSources had no matching records: say there is no evidence from it, never that activity declined.
A source listed under coverage.errors could not be read: say its data was unavailable.
Do not repeat metrics across sections. Tone: senior analyst, calm, supportive.`

// Request is one narration call.
type Request struct {
	Context  *envelope.Context
	Question string
	Mode     envelope.Mode
}

// Narrator produces prose for a Context. The reply is opaque text.
type Narrator interface {
	Narrate(ctx context.Context, req Request) (string, error)
}

// Completer is the chat capability OpenAI needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var _ Completer = (*llm.Client)(nil)

// OpenAI narrates through a chat completion endpoint.
type OpenAI struct {
	client Completer
}

var _ Narrator = (*OpenAI)(nil)

// NewOpenAI wraps a chat client.
func NewOpenAI(client Completer) *OpenAI {
	return &OpenAI{client: client}
}

// Narrate implements Narrator. Any failure, including an empty reply, is a
// NarrationUnavailable error.
func (o *OpenAI) Narrate(ctx context.Context, req Request) (string, error) {
	if req.Context == nil {
		return "", lserrors.NewNarrationUnavailable(fmt.Errorf("no context to narrate"))
	}
	user, err := UserPrompt(req)
	if err != nil {
		return "", lserrors.NewNarrationUnavailable(err)
	}

	reply, err := o.client.Complete(ctx, systemPrompt, user)
	if err != nil {
		return "", lserrors.NewNarrationUnavailable(err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", lserrors.NewNarrationUnavailable(fmt.Errorf("empty narration"))
	}
	return reply, nil
}

// UserPrompt renders the user message: the serialized Context, the fixed
// section outline, then the question.
func UserPrompt(req Request) (string, error) {
	data, err := envelope.Marshal(req.Context)
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.Write(data)
	b.WriteString("\n\nOutput structure (each section at most 5 sentences):\n")
	for i, s := range Sections {
		fmt.Fprintf(&b, "%d) %s\n", i+1, s)
	}
	b.WriteString("Only narrate explicit signals. Every number must include its unit and window.\n")

	mode := req.Mode
	if mode == "" {
		mode = req.Context.Mode
	}
	switch mode {
	case envelope.ModeFocus:
		if req.Context.Topic != nil {
			fmt.Fprintf(&b, "Topic: %s\n", req.Context.Topic.RawQuery)
		}
	case envelope.ModeProgress:
		b.WriteString("Compare the current window against the baseline window.\n")
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = defaultQuestion(mode, req.Context)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String(), nil
}

func defaultQuestion(mode envelope.Mode, c *envelope.Context) string {
	switch mode {
	case envelope.ModeFocus:
		if c.Topic != nil {
			return fmt.Sprintf("How am I doing on %s?", c.Topic.RawQuery)
		}
	case envelope.ModeProgress:
		return "How has my activity changed compared to the previous period?"
	}
	return "How am I doing overall?"
}
