// Package openai adapts internal/llm.Provider to OpenAI's chat completions
// API via the community go-openai client.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/internal/llm"
	"github.com/agentbridge/agentbridge/pkg/models"
)

const defaultModel = openai.GPT4o

// Config configures the OpenAI provider.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Provider implements llm.Provider against OpenAI's chat completions API.
type Provider struct {
	client       *openai.Client
	defaultModel string
}

// New creates an OpenAI-backed provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errs.Configuration("openai provider requires an API key", nil)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	return &Provider{client: openai.NewClientWithConfig(clientCfg), defaultModel: model}, nil
}

func (p *Provider) Name() string { return "openai" }

// Chat sends req and blocks for the complete (non-streamed) response.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return llm.ChatResponse{}, classify(err, model)
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, errs.LLM(fmt.Sprintf("openai chat completion (model=%s) returned no choices", model), nil)
	}

	return toChatResponse(resp), nil
}

func convertMessages(messages []llm.ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, call := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   call.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      call.Name,
							Arguments: string(call.Arguments),
						},
					}
				}
			}
			result = append(result, oaiMsg)
		case models.RoleSystem:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		default:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		}
	}
	return result
}

func convertTools(tools []llm.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

// toChatResponse extracts either the final text or the requested tool calls
// from the first choice, tolerating malformed tool-call argument JSON by
// substituting an empty object rather than rejecting the call.
func toChatResponse(resp openai.ChatCompletionResponse) llm.ChatResponse {
	choice := resp.Choices[0]
	out := llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}

	if len(choice.Message.ToolCalls) > 0 {
		calls := make([]models.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			calls = append(calls, models.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tolerantArguments(tc.Function.Arguments),
			})
		}
		out.ToolCalls = calls
		return out
	}

	out.Content = choice.Message.Content
	return out
}

func tolerantArguments(raw string) json.RawMessage {
	if raw == "" || !json.Valid([]byte(raw)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(raw)
}

// classify annotates provider failures with billing/quota/rate-limit hints
// surfaced by OpenAI's structured API error type.
func classify(err error, model string) *errs.Error {
	wrapped := errs.LLM(fmt.Sprintf("openai chat completion (model=%s)", model), err)
	var apiErr *openai.APIError
	if isAPIError(err, &apiErr) {
		wrapped = wrapped.With("status_code", apiErr.HTTPStatusCode).With("api_type", apiErr.Type).With("api_code", apiErr.Code)
	}
	return wrapped
}

func isAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
