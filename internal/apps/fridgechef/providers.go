package fridgechef

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrNoProvider means no AI provider is configured.
var ErrNoProvider = errors.New("no AI provider available")

// GenerateRequest is one prompt, optionally with an image attached.
type GenerateRequest struct {
	System   string
	Prompt   string
	Image    []byte
	MIMEType string
	JSON     bool
}

// Provider is a text/vision model endpoint.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// StatusError is a non-2xx answer from an HTTP provider.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
}

// IsUnavailable reports whether err means the AI service could not be
// reached or refused our credentials, as opposed to answering badly.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoProvider) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && (statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "403") || strings.Contains(msg, "API key")
}

// =============================================================================
// Gemini
// =============================================================================

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoProvider
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini:" + p.model }

func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	parts := make([]*genai.Part, 0, 2)
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, req.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	temperature := float32(0.4)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}

// =============================================================================
// OpenAI-compatible chat completions
// =============================================================================

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatProvider talks to an OpenAI-compatible /chat/completions endpoint.
type ChatProvider struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewChatProvider(url, apiKey, model string, timeout time.Duration) *ChatProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatProvider{url: url, apiKey: apiKey, model: model, client: &http.Client{Timeout: timeout}}
}

func (p *ChatProvider) Name() string { return "chat:" + p.model }

func (p *ChatProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	if len(req.Image) > 0 {
		dataURL := "data:" + req.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
		messages = append(messages, chatMessage{Role: "user", Content: []chatContentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
		}})
	} else {
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	}

	payload, err := json.Marshal(chatRequest{Model: p.model, Messages: messages, Temperature: 0.4})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Provider: p.Name(), Code: resp.StatusCode}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", errors.New("no response from AI")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
