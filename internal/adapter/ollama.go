package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

// OllamaConfig contains configuration for the Ollama backend.
type OllamaConfig struct {
	// Host is the endpoint base URL. If empty, uses OLLAMA_HOST, falling
	// back to http://localhost:11434.
	Host string
	// Model is the model name (e.g. "llama3").
	Model string
	// Timeout bounds each request; zero selects 120s.
	Timeout time.Duration
}

// Ollama implements Adapter against an Ollama-compatible HTTP endpoint.
type Ollama struct {
	host   string
	model  string
	client *http.Client
}

// NewOllama creates a new Ollama-backed adapter.
func NewOllama(cfg OllamaConfig) *Ollama {
	host := cfg.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Ollama{
		host:   strings.TrimRight(host, "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the backend identifier.
func (o *Ollama) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int64         `json:"prompt_eval_count"`
	EvalCount       int64         `json:"eval_count"`
}

// Generate produces a completion for a single prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string) (*Response, error) {
	return o.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// Chat produces a completion for a conversation.
func (o *Ollama) Chat(ctx context.Context, messages []Message) (*Response, error) {
	reqBody := ollamaChatRequest{Model: o.model, Stream: false}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errkind.Wrap(errkind.AIError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, errkind.Wrap(errkind.AIError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, errkind.Wrap(errkind.AdapterTimeout, err)
		}
		return nil, errkind.Wrap(errkind.AdapterConnectionError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errkind.Errorf(errkind.AIError, "ollama returned status %d", resp.StatusCode)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errkind.Wrap(errkind.AIError, fmt.Errorf("decode response: %w", err))
	}

	return &Response{
		Content:    out.Message.Content,
		TokensUsed: out.PromptEvalCount + out.EvalCount,
	}, nil
}

// Available reports whether the endpoint is reachable.
func (o *Ollama) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Verify Ollama implements Adapter at compile time.
var _ Adapter = (*Ollama)(nil)
