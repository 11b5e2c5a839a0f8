package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/abdhe/kelly-poet/pkg/conversation"
)

// GeminiProvider implements the Provider interface for Google's Gemini API.
type GeminiProvider struct {
	httpAdapter
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(opts ...Option) *GeminiProvider {
	return &GeminiProvider{httpAdapter: newHTTPAdapter("https://generativelanguage.googleapis.com/v1beta", opts)}
}

func (g *GeminiProvider) Name() string { return "gemini" }

// geminiRequest is the Gemini API request body.
type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// Gemini calls the assistant side of a conversation "model".
func geminiRole(r conversation.Role) (string, error) {
	switch r {
	case conversation.RoleUser:
		return "user", nil
	case conversation.RoleAssistant:
		return "model", nil
	default:
		return "", fmt.Errorf("%w %q", conversation.ErrInvalidRole, r)
	}
}

func (g *GeminiProvider) buildBody(req Request) ([]byte, error) {
	contents := make([]geminiContent, 0, len(req.History)+1)
	for _, t := range req.History {
		role, err := geminiRole(t.Role)
		if err != nil {
			return nil, err
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Content}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}})

	return json.Marshal(geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: req.Persona}}},
		Contents:          contents,
		GenerationConfig: geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	})
}

// Send posts one generateContent request. The key travels in a header so it
// never appears in logged URLs.
func (g *GeminiProvider) Send(ctx context.Context, req Request) (RawResponse, error) {
	jsonBody, err := g.buildBody(req)
	if err != nil {
		return RawResponse{}, fmt.Errorf("gemini: build request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return RawResponse{}, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.APIKey)

	resp, err := g.do(httpReq)
	if err != nil {
		return RawResponse{}, fmt.Errorf("gemini: do request: %w", err)
	}
	return resp, nil
}

// Extract returns candidates[0].content.parts[0].text.
func (g *GeminiProvider) Extract(body []byte) (string, error) {
	text, err := extractText(body, "candidates.0.content.parts.0.text")
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return text, nil
}

var _ Provider = (*GeminiProvider)(nil)
