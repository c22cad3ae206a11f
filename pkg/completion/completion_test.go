package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"concierge/pkg/config"
)

const okBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  El spa abre a las 9:00.  "}}],
  "usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
}`

type vendorRequest struct {
	Model    string `json:"model"`
	Stream   *bool  `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newVendor(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32, *vendorRequest) {
	t.Helper()

	var calls atomic.Int32
	var captured vendorRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, &calls, &captured
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	t.Setenv("OPENAI_API_KEY", "sk-test")
	client, err := New(config.CompletionConfig{BaseURL: baseURL, Model: "openai/gpt-4o-mini", RequestTimeoutSeconds: 5})
	require.NoError(t, err)
	return client
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	server, calls, captured := newVendor(t, http.StatusOK, okBody)
	client := newTestClient(t, server.URL)

	result := client.Complete(context.Background(), Request{System: "Eres el concierge.", User: "¿A qué hora abre el spa?"})

	require.Equal(t, "El spa abre a las 9:00.", result.Text)
	require.False(t, result.Fallback)
	require.Equal(t, CategoryNone, result.Category)
	require.Equal(t, "ok", result.Outcome())
	require.Equal(t, TopicConcierge, result.Topic)
	require.Equal(t, Usage{PromptTokens: 42, CompletionTokens: 7, TotalTokens: 49}, result.Usage)
	require.EqualValues(t, 1, calls.Load())

	require.Equal(t, "gpt-4o-mini", captured.Model)
	require.NotNil(t, captured.Stream, "stream must be sent explicitly")
	require.False(t, *captured.Stream)
	require.Len(t, captured.Messages, 2)
	require.Equal(t, "system", captured.Messages[0].Role)
	require.Equal(t, "Eres el concierge.", captured.Messages[0].Content)
	require.Equal(t, "user", captured.Messages[1].Role)
	require.Equal(t, "¿A qué hora abre el spa?", captured.Messages[1].Content)
}

func TestCompleteFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		request  Request
		want     string
		category Category
	}{
		{
			name:     "rate limited weather question",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"slow down","type":"rate_limit"}}`,
			request:  Request{User: "¿cómo está el clima mañana?"},
			want:     rateLimitedWeather,
			category: CategoryRateLimited,
		},
		{
			name:     "rate limited explicit topic wins",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"slow down","type":"rate_limit"}}`,
			request:  Request{User: "¿va a llover?", Topic: TopicConcierge},
			want:     rateLimitedConcierge,
			category: CategoryRateLimited,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"message":"boom"}}`,
			request:  Request{User: "¿tienen gimnasio?"},
			want:     genericFallback,
			category: CategoryFailed,
		},
		{
			name:     "empty choices",
			status:   http.StatusOK,
			body:     `{"id":"chatcmpl-2","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`,
			request:  Request{User: "¿tienen gimnasio?"},
			want:     genericFallback,
			category: CategoryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _, _ := newVendor(t, tt.status, tt.body)
			client := newTestClient(t, server.URL)

			result := client.Complete(context.Background(), tt.request)

			require.True(t, result.Fallback)
			require.Equal(t, tt.category, result.Category)
			require.Equal(t, tt.want, result.Text)
		})
	}
}

func TestCompleteWithoutAPIKeySkipsVendor(t *testing.T) {
	server, calls, _ := newVendor(t, http.StatusOK, okBody)
	t.Setenv("OPENAI_API_KEY", "")

	client, err := New(config.CompletionConfig{BaseURL: server.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	result := client.Complete(context.Background(), Request{User: "¿pronóstico para hoy?"})

	require.True(t, result.Fallback)
	require.Equal(t, CategoryUnavailable, result.Category)
	require.Equal(t, genericFallback, result.Text)
	require.Zero(t, calls.Load())
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	server, calls, _ := newVendor(t, http.StatusInternalServerError, `{"error":{"message":"down"}}`)
	client := newTestClient(t, server.URL)

	for range 5 {
		result := client.Complete(context.Background(), Request{User: "hola?"})
		require.Equal(t, CategoryFailed, result.Category)
	}

	result := client.Complete(context.Background(), Request{User: "hola?"})
	require.Equal(t, CategoryUnavailable, result.Category)
	require.Equal(t, genericFallback, result.Text)
	require.EqualValues(t, 5, calls.Load())
}

func TestRateLimitKeepsTopicFallbackWithoutTrippingBreaker(t *testing.T) {
	server, calls, _ := newVendor(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	client := newTestClient(t, server.URL)

	for i := range 6 {
		result := client.Complete(context.Background(), Request{User: "¿cómo está el clima?"})
		require.Equal(t, CategoryRateLimited, result.Category, "call %d", i+1)
		require.Equal(t, rateLimitedWeather, result.Text, "call %d", i+1)
	}

	require.EqualValues(t, 6, calls.Load())
}

func TestNewUsesConfiguredAPIKeyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("HOTEL_LLM_KEY", "sk-hotel")

	client, err := New(config.CompletionConfig{APIKeyEnv: "HOTEL_LLM_KEY", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	require.True(t, client.available)
}

func TestNewFallsBackToDefaultAPIKeyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")
	t.Setenv("HOTEL_LLM_KEY", "")

	client, err := New(config.CompletionConfig{APIKeyEnv: "HOTEL_LLM_KEY", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	require.True(t, client.available)
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain model", input: "gpt-4o-mini", want: "gpt-4o-mini"},
		{name: "openai prefix", input: "openai/gpt-4o-mini", want: "gpt-4o-mini"},
		{name: "other provider", input: "anthropic/claude", wantErr: true},
		{name: "missing model id", input: "openai/", wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeModel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("normalizeModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTopicFor(t *testing.T) {
	tests := map[string]Topic{
		"¿Cómo está el CLIMA?":         TopicWeather,
		"what's the weather like":      TopicWeather,
		"¿habrá lluvia en la tarde?":   TopicWeather,
		"pronóstico del fin de semana": TopicWeather,
		"¿a qué hora cierra el bar?":   TopicConcierge,
		"":                             TopicConcierge,
	}

	for text, want := range tests {
		require.Equal(t, want, TopicFor(text), text)
	}
}

func TestFallbackSelection(t *testing.T) {
	require.Equal(t, rateLimitedWeather, Fallback(TopicWeather, CategoryRateLimited))
	require.Equal(t, rateLimitedConcierge, Fallback(TopicConcierge, CategoryRateLimited))
	require.Equal(t, genericFallback, Fallback(TopicWeather, CategoryFailed))
	require.Equal(t, genericFallback, Fallback(TopicConcierge, CategoryUnavailable))
	require.Contains(t, genericFallback, "menu")
	require.Contains(t, genericFallback, "recepción")
}
