package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMessages(t *testing.T) {
	msgs := resolveMessages(Request{Messages: []Message{{Role: "", Content: " hi "}, {Role: "assistant", Content: ""}}})
	if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Content != " hi " {
		t.Fatalf("unexpected msgs: %+v", msgs)
	}
	msgs = resolveMessages(Request{Messages: PromptMessages("", "u")})
	if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Content != "u" {
		t.Fatalf("blank system prompt should be dropped: %+v", msgs)
	}
	msgs = resolveMessages(Request{Messages: PromptMessages("s", "u")})
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected prompt msgs: %+v", msgs)
	}
}

func TestJoinURLAndTruncate(t *testing.T) {
	if got := joinURL("https://a.com/v1", "/v1/chat/completions"); got != "https://a.com/v1/chat/completions" {
		t.Fatalf("joinURL mismatch: %s", got)
	}
	if got := joinURL("", "/v1/x"); !strings.HasPrefix(got, "https://api.openai.com") {
		t.Fatalf("joinURL default mismatch: %s", got)
	}
	if truncate("abcdef", 3) != "abc" {
		t.Fatalf("truncate mismatch")
	}
}

func TestCompleteOpenAI(t *testing.T) {
	var got map[string]any
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"id":"chatcmpl-1","created":1700000000,"model":"gpt-4.1-mini-2025-04-14",
			"choices":[{"message":{"content":"  Ein Text  "}}],
			"usage":{"prompt_tokens":321,"completion_tokens":98}}`)
	}))
	defer ts.Close()

	c := NewClient(0)
	defer c.Close()
	out, err := c.Complete(context.Background(), Request{
		Provider:    "openai",
		BaseURL:     ts.URL,
		Model:       "gpt-4.1-mini",
		APIKey:      "k",
		Messages:    PromptMessages("s", "u"),
		Temperature: 0.5,
		MaxTokens:   1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "  Ein Text  ", out.Text)
	assert.Equal(t, "chatcmpl-1", out.ID)
	assert.Equal(t, int64(1700000000), out.Created)
	assert.Equal(t, "gpt-4.1-mini-2025-04-14", out.Model)
	assert.Equal(t, 321, out.PromptTokens)
	assert.Equal(t, 98, out.CompletionTokens)

	assert.Equal(t, "Bearer k", auth)
	assert.Equal(t, "gpt-4.1-mini", got["model"])
	assert.Equal(t, 0.5, got["temperature"])
	assert.Equal(t, float64(1000), got["max_tokens"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "u", msgs[1].(map[string]any)["content"])
}

func TestCompleteDeepSeekPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"id":"x","created":1,"model":"deepseek-chat","choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer ts.Close()

	out, err := NewClient(0).Complete(context.Background(), Request{Provider: "deepseek", BaseURL: ts.URL, Model: "deepseek-chat", Messages: PromptMessages("", "u")})
	if err != nil || out.Text != "ok" {
		t.Fatalf("deepseek failed: out=%+v err=%v", out, err)
	}
}

func TestCompleteErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer empty":
			fmt.Fprint(w, `{"choices":[]}`)
		case "Bearer blank":
			fmt.Fprint(w, `{"choices":[{"message":{"content":"  "}}]}`)
		case "Bearer apierr":
			fmt.Fprint(w, `{"error":{"message":"quota"}}`)
		case "Bearer garbage":
			fmt.Fprint(w, `not json`)
		default:
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}
	}))
	defer ts.Close()

	c := NewClient(0)
	cases := map[string]string{
		"empty":   "ohne Antwort",
		"blank":   "Inhalt leer",
		"apierr":  "quota",
		"garbage": "parsen",
		"http":    "HTTP 429",
	}
	for key, want := range cases {
		_, err := c.Complete(context.Background(), Request{BaseURL: ts.URL, APIKey: key, Messages: PromptMessages("s", "u")})
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%s: expected error containing %q, got %v", key, want, err)
		}
	}

	_, err := c.Complete(context.Background(), Request{BaseURL: ts.URL, Messages: PromptMessages("", " ")})
	if err == nil || !strings.Contains(err.Error(), "ohne Nachricht") {
		t.Fatalf("expected missing message error, got %v", err)
	}

	_, err = c.Complete(context.Background(), Request{Provider: "gemini"})
	if err == nil || !strings.Contains(err.Error(), "nicht unterstützter Provider") {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
}
