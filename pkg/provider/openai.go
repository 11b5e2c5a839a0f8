package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/abdhe/kelly-poet/pkg/conversation"
)

// OpenAIProvider implements the Provider interface for OpenAI's Chat Completions API.
type OpenAIProvider struct {
	httpAdapter
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(opts ...Option) *OpenAIProvider {
	return &OpenAIProvider{httpAdapter: newHTTPAdapter("https://api.openai.com/v1", opts)}
}

func (o *OpenAIProvider) Name() string { return "openai" }

// ---------------------------------------------------------------------------
// Request types for OpenAI Chat Completions
// ---------------------------------------------------------------------------

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func openAIRole(r conversation.Role) (string, error) {
	switch r {
	case conversation.RoleUser:
		return "user", nil
	case conversation.RoleAssistant:
		return "assistant", nil
	default:
		return "", fmt.Errorf("%w %q", conversation.ErrInvalidRole, r)
	}
}

func (o *OpenAIProvider) buildBody(req Request) ([]byte, error) {
	msgs := make([]openAIMessage, 0, len(req.History)+2)
	msgs = append(msgs, openAIMessage{Role: "system", Content: req.Persona})
	for _, t := range req.History {
		role, err := openAIRole(t.Role)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, openAIMessage{Role: role, Content: t.Content})
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: req.Prompt})

	return json.Marshal(openAIRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
	})
}

// Send posts one chat completion request.
func (o *OpenAIProvider) Send(ctx context.Context, req Request) (RawResponse, error) {
	jsonBody, err := o.buildBody(req)
	if err != nil {
		return RawResponse{}, fmt.Errorf("openai: build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return RawResponse{}, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := o.do(httpReq)
	if err != nil {
		return RawResponse{}, fmt.Errorf("openai: do request: %w", err)
	}
	return resp, nil
}

// Extract returns choices[0].message.content.
func (o *OpenAIProvider) Extract(body []byte) (string, error) {
	text, err := extractText(body, "choices.0.message.content")
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return text, nil
}

var _ Provider = (*OpenAIProvider)(nil)
