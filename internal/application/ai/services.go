package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bryanwahyu/knit-tagger/internal/domain/ai"
)

type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

// AnalyzeFile reads the image at path and returns the model's JSON object, compacted.
func (s *Service) AnalyzeFile(ctx context.Context, path, category string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ai.ReadError{Path: path, Err: err}
	}
	if len(data) == 0 {
		return nil, &ai.ReadError{Path: path, Err: fmt.Errorf("empty file")}
	}

	raw, err := s.client.Analyze(ctx, ai.Image{
		Data:     data,
		MIMEType: detectMIME(data),
		Category: category,
	})
	if err != nil {
		return nil, err
	}
	return validateObject(raw)
}

// validateObject accepts exactly one JSON object and returns it compacted.
func validateObject(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: %s", ai.ErrMalformedResponse, preview(trimmed))
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

func detectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}

func preview(b []byte) string {
	const n = 80
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
