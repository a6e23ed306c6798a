package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// PromptMessages is the system and user message pair of one product text
// request. Blank messages are not sent.
func PromptMessages(system, user string) []Message {
	return []Message{{Role: "system", Content: system}, {Role: "user", Content: user}}
}

// Completion is the generated text together with the metadata the service
// reports for it.
type Completion struct {
	Text             string
	ID               string
	Created          int64
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
}

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()}}
}

// Close releases the idle connections held by the client.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

func (c *Client) Complete(ctx context.Context, req Request) (Completion, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = "openai"
	}
	var path string
	switch provider {
	case "openai":
		path = "/v1/chat/completions"
	case "deepseek":
		path = "/chat/completions"
	default:
		return Completion{}, fmt.Errorf("nicht unterstützter Provider: %s", provider)
	}

	start := time.Now()
	out, err := c.chat(ctx, joinURL(req.BaseURL, path), req)
	if err != nil {
		return Completion{}, fmt.Errorf("%s: %w", provider, err)
	}
	out.LatencyMS = time.Since(start).Milliseconds()
	return out, nil
}

type chatResponse struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) chat(ctx context.Context, endpoint string, req Request) (Completion, error) {
	messages := resolveMessages(req)
	if len(messages) == 0 {
		return Completion{}, fmt.Errorf("Anfrage ohne Nachricht")
	}
	payload := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}

	var resp chatResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req.APIKey, payload, &resp); err != nil {
		return Completion{}, err
	}
	if resp.Error != nil {
		return Completion{}, fmt.Errorf("chat completions Fehler: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("chat completions ohne Antwort")
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return Completion{}, fmt.Errorf("chat completions Inhalt leer")
	}
	return Completion{
		Text:             text,
		ID:               resp.ID,
		Created:          resp.Created,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func resolveMessages(req Request) []Message {
	out := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "user"
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, bearer string, in any, out any) error {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("Anfrage kodieren fehlgeschlagen: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, buf)
	if err != nil {
		return fmt.Errorf("Anfrage erstellen fehlgeschlagen: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(bearer) != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Anfrage fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("Antwort lesen fehlgeschlagen: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 800))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("Antwort parsen fehlgeschlagen: %w; Rohantwort: %s", err, truncate(string(body), 800))
	}
	return nil
}

func joinURL(base, path string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "https://api.openai.com"
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/v1") && strings.HasPrefix(path, "/v1/") {
		path = strings.TrimPrefix(path, "/v1")
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
