package llm

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"lifesignal/internal/testutil"
)

func TestClient_Complete(t *testing.T) {
	srv := testutil.NewChatServer(t, func(req testutil.ChatRequest) testutil.ChatReply {
		return testutil.ChatReply{Content: "  narrated answer \n"}
	})

	c := New(Config{BaseURL: srv.URL + "/", Model: "local-model", Temperature: 0.2, MaxTokens: 300, Timeout: 5 * time.Second}, nil)
	got, err := c.Complete(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "narrated answer" {
		t.Errorf("Complete = %q, want trimmed content", got)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Model != "local-model" {
		t.Errorf("model = %q", req.Model)
	}
	if req.MaxTokens != 300 {
		t.Errorf("max_tokens = %d, want 300", req.MaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "user prompt" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name  string
		reply testutil.ChatReply
		want  string
	}{
		{"server error", testutil.ChatReply{Status: http.StatusInternalServerError}, "500"},
		{"empty content", testutil.ChatReply{Content: "   "}, "empty content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewChatServer(t, func(testutil.ChatRequest) testutil.ChatReply { return tt.reply })
			c := New(Config{BaseURL: srv.URL, MaxRetries: 0, Timeout: 5 * time.Second}, nil)

			_, err := c.Complete(context.Background(), "s", "u")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{}, nil)
	if c.Model() != DefaultModel {
		t.Errorf("Model() = %q, want %q", c.Model(), DefaultModel)
	}
	if c.cfg.BaseURL != DefaultBaseURL || c.cfg.Timeout != DefaultTimeout {
		t.Errorf("defaults not applied: %+v", c.cfg)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"keywords":["a"]}`, `{"keywords":["a"]}`},
		{"fenced", "```json\n{\"keywords\":[\"a\"]}\n```", `{"keywords":["a"]}`},
		{"prose around", `Sure! {"keywords":["b"]} hope that helps`, `{"keywords":["b"]}`},
		{"array in prose", `keywords: ["x","y"].`, `["x","y"]`},
		{"empty", "  ", ""},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
