package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	cfg := DefaultConfig("test-key")
	cfg.BaseURL = url
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "parse this")

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": `{"ok": true}`}}}},
			},
		})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).Generate(context.Background(), "parse this")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, got)
}

func TestGenerateNotConfigured(t *testing.T) {
	c := NewClient(DefaultConfig(""))
	assert.False(t, c.Configured())

	_, err := c.Generate(context.Background(), "anything")
	assert.True(t, errors.Is(err, ErrNotConfigured))

	c = NewClient(DefaultConfig("your_gemini_api_key_here"))
	assert.False(t, c.Configured())
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}
