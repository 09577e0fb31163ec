package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fitcoach/internal/config"
)

func TestAnthropicCompleteWithSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"fitness"}]}`))
	}))
	defer srv.Close()

	client := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}, zaptest.NewLogger(t))

	got, err := client.CompleteWithSystem(context.Background(), "route the turn", "quiero entrenar")
	require.NoError(t, err)
	assert.Equal(t, "fitness", got)
}

func TestAnthropicTimeoutNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.CompleteWithSystem(ctx, "", "hola")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "expected ErrTimeout, got %v", err)
}

func TestAnthropicServerErrorNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	}, zaptest.NewLogger(t))

	// 5xx retries exhaust quickly with a short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := client.CompleteWithSystem(ctx, "", "hola")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout))
}

func TestAnthropicMissingKey(t *testing.T) {
	client := NewAnthropicClient("", zaptest.NewLogger(t))
	_, err := client.Complete(context.Background(), "hola")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestFactorySelectsProvider(t *testing.T) {
	client, err := NewClientFromConfig(config.LLMConfig{
		Provider: "anthropic",
		APIKey:   "k",
		Timeout:  "30s",
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, client)

	_, err = NewClientFromConfig(config.LLMConfig{Provider: "openai"}, nil)
	assert.Error(t, err)
}
