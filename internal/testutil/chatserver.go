package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ChatRequest is the part of a chat completion request tests inspect.
type ChatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// ChatReply is what the fake endpoint answers with. A non-2xx Status
// returns an error body instead of a completion.
type ChatReply struct {
	Status  int
	Content string
}

// ChatServer is a fake OpenAI-compatible /chat/completions endpoint.
type ChatServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []ChatRequest
}

// NewChatServer starts a server answering every request via reply.
// It is closed when the test ends.
func NewChatServer(t *testing.T, reply func(ChatRequest) ChatReply) *ChatServer {
	t.Helper()

	cs := &ChatServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req ChatRequest
		_ = json.Unmarshal(body, &req)

		cs.mu.Lock()
		cs.requests = append(cs.requests, req)
		cs.mu.Unlock()

		out := reply(req)
		w.Header().Set("Content-Type", "application/json")
		if out.Status != 0 && out.Status != http.StatusOK {
			w.WriteHeader(out.Status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": out.Content},
			}},
		})
	}))
	t.Cleanup(cs.Close)
	return cs
}

// Requests returns a copy of the requests received so far.
func (cs *ChatServer) Requests() []ChatRequest {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]ChatRequest, len(cs.requests))
	copy(out, cs.requests)
	return out
}
