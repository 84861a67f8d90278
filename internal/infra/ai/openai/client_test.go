package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/knit-tagger/internal/domain/ai"
)

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(body)
}

func newTestClient(t *testing.T, model string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: model})
}

func TestAnalyzeSendsImageRequest(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completion(`{"shape":"fitted"}`))
	})

	got, err := c.Analyze(context.Background(), ai.Image{Data: []byte("img"), MIMEType: "image/png", Category: "cardigans"})
	require.NoError(t, err)
	require.JSONEq(t, `{"shape":"fitted"}`, string(got))

	require.Equal(t, "gpt-4o", body["model"])
	require.EqualValues(t, 1500, body["max_tokens"])
	require.InDelta(t, 0.5, body["temperature"], 1e-6)
	require.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	text := parts[0].(map[string]any)
	require.Equal(t, "text", text["type"])
	require.Contains(t, text["text"], "cardigans")
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	require.Equal(t, "data:image/png;base64,aW1n", image["url"])
	require.Equal(t, "high", image["detail"])
}

func TestAnalyzeReasoningModelUsesMaxCompletionTokens(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, "o4-mini", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, completion(`{}`))
	})

	_, err := c.Analyze(context.Background(), ai.Image{Data: []byte("img")})
	require.NoError(t, err)
	require.EqualValues(t, 1500, body["max_completion_tokens"])
	require.NotContains(t, body, "max_tokens")
	require.NotContains(t, body, "temperature")
}

func TestAnalyzeQuotaExceeded(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	})

	_, err := c.Analyze(context.Background(), ai.Image{Data: []byte("img")})
	require.ErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestAnalyzeServerError(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})

	_, err := c.Analyze(context.Background(), ai.Image{Data: []byte("img")})
	require.Error(t, err)
	require.NotErrorIs(t, err, ai.ErrQuotaExceeded)
	require.True(t, strings.Contains(err.Error(), "failed to create chat completion"))
}

func TestAnalyzeEmptyContent(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, completion("  "))
	})
	_, err := c.Analyze(context.Background(), ai.Image{Data: []byte("img")})
	require.ErrorIs(t, err, ai.ErrEmptyResponse)
}
