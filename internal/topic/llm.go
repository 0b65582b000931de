package topic

import (
	"context"
	"encoding/json"
	"fmt"

	"lifesignal/internal/llm"
)

const interpretSystemPrompt = `You expand a personal-tracking topic into search keywords.
Return short lower-case words or phrases a person would type in task names,
time entries, habit names or workout notes about this topic.
Return ONLY a JSON object like {"keywords": ["...", "..."]} with at most 12 entries.`

// Completer is the chat capability LLM needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var _ Completer = (*llm.Client)(nil)

// LLM asks a language model for keywords. Only the raw query is sent.
type LLM struct {
	client Completer
}

// NewLLM wraps a chat client.
func NewLLM(client Completer) *LLM {
	return &LLM{client: client}
}

// Interpret implements Interpreter.
func (l *LLM) Interpret(ctx context.Context, rawQuery string) ([]string, error) {
	reply, err := l.client.Complete(ctx, interpretSystemPrompt, "Topic: "+rawQuery)
	if err != nil {
		return nil, fmt.Errorf("keyword expansion: %w", err)
	}

	raw := llm.ExtractJSON(reply)
	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		var arr []string
		if err2 := json.Unmarshal([]byte(raw), &arr); err2 != nil {
			return nil, fmt.Errorf("keyword expansion returned invalid json: %w", err)
		}
		parsed.Keywords = arr
	}
	return parsed.Keywords, nil
}
