package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/knit-tagger/internal/domain/ai"
	"github.com/bryanwahyu/knit-tagger/internal/infra/ai/prompt"
)

const (
	defaultModel       = "gpt-4o"
	defaultMaxTokens   = 1500
	defaultTemperature = 0.5
	defaultTimeout     = 2 * time.Minute
)

// Options tunes the chat completion request. Zero values fall back to defaults.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Detail      string // low | high | auto
	Timeout     time.Duration
}

type Client struct {
	*openai.Client
	Model       string
	MaxTokens   int
	Temperature float32
	Detail      openai.ImageURLDetail
}

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	c := &Client{
		Client:      openai.NewClientWithConfig(cfg),
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Detail:      openai.ImageURLDetail(opts.Detail),
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	if c.Detail == "" {
		c.Detail = openai.ImageURLDetailHigh
	}
	return c
}

// Analyze sends the image as a data URL together with the design prompt and returns
// the raw message content.
func (c *Client) Analyze(ctx context.Context, img ai.Image) (json.RawMessage, error) {
	req := c.buildRequest(img)

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuota(err) {
			return nil, fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, ai.ErrEmptyResponse
	}
	return json.RawMessage(content), nil
}

func (c *Client) buildRequest(img ai.Image) openai.ChatCompletionRequest {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.Data))

	req := openai.ChatCompletionRequest{
		Model: c.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt(img.Category)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: c.Detail,
						},
					},
				},
			},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.Model) {
		req.MaxCompletionTokens = c.MaxTokens
	} else {
		req.MaxTokens = c.MaxTokens
		req.Temperature = c.Temperature
	}
	return req
}

func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5")
}

func isQuota(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
