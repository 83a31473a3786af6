package adapter

import (
	"context"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

// AnthropicConfig contains configuration for the Anthropic backend.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// Model is the Claude model to use; empty selects a sensible default.
	Model anthropic.Model
	// MaxTokens bounds each completion; zero selects 8192.
	MaxTokens int64
}

// Anthropic implements Adapter on the official Anthropic SDK.
type Anthropic struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates a new Anthropic-backed adapter.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errkind.Errorf(errkind.AdapterConnectionError, "ANTHROPIC_API_KEY is not set")
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	return &Anthropic{
		inner:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Name returns the backend identifier.
func (a *Anthropic) Name() string { return "anthropic" }

// Generate produces a completion for a single prompt.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (*Response, error) {
	return a.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// Chat produces a completion for a conversation.
func (a *Anthropic) Chat(ctx context.Context, messages []Message) (*Response, error) {
	return a.call(ctx, messages, nil)
}

// ChatWithTools produces a completion that may request tool calls.
func (a *Anthropic) ChatWithTools(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	return a.call(ctx, messages, tools)
}

func (a *Anthropic) call(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	for _, t := range tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema,
					Required:   t.Required,
				},
			},
		})
	}

	resp, err := a.inner.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errkind.Wrap(errkind.AdapterTimeout, err)
		}
		return nil, errkind.Wrap(errkind.AIError, err)
	}

	out := &Response{TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += variant.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Name:  variant.Name,
				Input: []byte(variant.JSON.Input.Raw()),
			})
		}
	}
	return out, nil
}

// Available reports whether the backend is reachable. A minimal request is
// issued; authentication or network failures mean unavailable.
func (a *Anthropic) Available(ctx context.Context) bool {
	_, err := a.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err == nil
}

// Verify Anthropic implements the adapter contracts at compile time.
var (
	_ Adapter     = (*Anthropic)(nil)
	_ ToolCapable = (*Anthropic)(nil)
)
