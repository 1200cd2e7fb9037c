package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "test-model",
		MaxRetries: maxRetries,
	}, nil)
	require.NoError(t, err)
	c.backoffBase = time.Millisecond
	return c
}

func reply(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestSend(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		reply(w, "SELECT Name FROM Club")
	}))
	defer srv.Close()

	// Trailing slash on the base URL must not double up in the path.
	c := newTestClient(t, srv.URL+"/", 0)
	out, err := c.Send(context.Background(), "list all clubs")
	require.NoError(t, err)

	assert.Equal(t, "SELECT Name FROM Club", out)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotPayload.Model)
	require.Len(t, gotPayload.Messages, 1)
	assert.Equal(t, "user", gotPayload.Messages[0].Role)
	assert.Equal(t, "list all clubs", gotPayload.Messages[0].Content)
}

func TestSendRetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		reply(w, "SELECT 1")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	out, err := c.Send(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSendExhaustsRetriesOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	_, err := c.Send(context.Background(), "q")
	assert.ErrorContains(t, err, "status 500")
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSendClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	_, err := c.Send(context.Background(), "q")
	assert.ErrorContains(t, err, "status 401")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSendNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	_, err := c.Send(context.Background(), "q")
	assert.ErrorContains(t, err, "no choices")
}

func TestSendMaxTokens(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		reply(w, "SELECT 1")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	_, err := c.Send(context.Background(), "q")
	require.NoError(t, err)
	assert.NotContains(t, raw, "max_tokens")

	c.maxTokens = 256
	_, err = c.Send(context.Background(), "q")
	require.NoError(t, err)
	assert.EqualValues(t, 256, raw["max_tokens"])
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{APIKey: "k"}, nil)
	assert.ErrorContains(t, err, "base URL is required")

	_, err = New(Config{BaseURL: "http://localhost"}, nil)
	assert.ErrorContains(t, err, "api key is required")
}
