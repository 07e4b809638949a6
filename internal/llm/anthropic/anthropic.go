// Package anthropic adapts internal/llm.Provider to Anthropic's Messages
// API via the official SDK.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/internal/llm"
	"github.com/agentbridge/agentbridge/pkg/models"
)

const defaultMaxTokens = 4096

// Config configures the Anthropic provider.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
}

// Provider implements llm.Provider against the Anthropic Messages API.
type Provider struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int
}

// New creates an Anthropic-backed provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errs.Configuration("anthropic provider requires an API key", nil)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &Provider{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
		maxTokens:    maxTokens,
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

// Chat sends req and blocks for the complete (non-streamed) response.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	var system []anthropic.TextBlockParam
	messages, err := convertMessages(req.Messages, &system)
	if err != nil {
		return llm.ChatResponse{}, errs.LLM("convert messages for anthropic", err)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(p.maxTokens),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return llm.ChatResponse{}, errs.LLM("convert tools for anthropic", err)
		}
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return llm.ChatResponse{}, classify(err, model)
	}

	return toChatResponse(msg), nil
}

// convertMessages maps neutral ChatMessages to Anthropic's MessageParam
// array, pulling system-role content out into system separately, matching
// the Anthropic API's separation of system prompt from the message array.
func convertMessages(messages []llm.ChatMessage, system *[]anthropic.TextBlockParam) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			if msg.Content != "" {
				*system = append(*system, anthropic.TextBlockParam{Type: "text", Text: msg.Content})
			}
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		if msg.Role == models.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		}
		for _, call := range msg.ToolCalls {
			input := toolInput(call.Arguments)
			content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

// toolInput tolerates malformed tool-call argument JSON by substituting an
// empty object rather than failing the whole request.
func toolInput(raw json.RawMessage) map[string]any {
	var input map[string]any
	if len(raw) == 0 {
		return map[string]any{}
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return map[string]any{}
	}
	return input
}

func convertTools(tools []llm.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid schema: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		param.OfTool.Description = anthropic.String(t.Description)
		result = append(result, param)
	}
	return result, nil
}

// toChatResponse extracts either the final text or the requested tool calls
// from an Anthropic Message, plus token usage.
func toChatResponse(msg *anthropic.Message) llm.ChatResponse {
	resp := llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
	}

	var text string
	var calls []models.ToolCall
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += variant.Text
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(variant.Input)
			calls = append(calls, models.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}

	if len(calls) > 0 {
		resp.ToolCalls = calls
	} else {
		resp.Content = text
	}
	return resp
}

// classify annotates provider failures with billing/quota/rate-limit hints
// per the tolerant-adapter requirement.
func classify(err error, model string) *errs.Error {
	wrapped := errs.LLM(fmt.Sprintf("anthropic chat completion (model=%s)", model), err)
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		wrapped = wrapped.With("status_code", apiErr.StatusCode).With("api_type", apiErr.Type)
	}
	return wrapped
}
