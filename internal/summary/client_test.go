package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	var gotInputs, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req summarizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInputs = req.Inputs
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[{"summary_text":"A short summary."}]`))
	}))
	defer srv.Close()

	client := NewClient("hf-key", srv.URL)
	got, err := client.Summarize(context.Background(), "A very long article.")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", got)
	assert.Equal(t, "A very long article.", gotInputs)
	assert.Equal(t, "Bearer hf-key", gotAuth)
}

func TestSummarizeErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		client := NewClient("", "")
		assert.False(t, client.Configured())
		_, err := client.Summarize(context.Background(), "text")
		assert.True(t, errors.Is(err, ErrNotConfigured))
	})

	t.Run("upstream status is preserved", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model is loading"}`))
		}))
		defer srv.Close()

		_, err := NewClient("hf-key", srv.URL).Summarize(context.Background(), "text")
		var upstream *UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
		assert.Equal(t, `{"error":"Model is loading"}`, upstream.Body)
	})

	t.Run("unexpected shape yields empty summary", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"something":"else"}`))
		}))
		defer srv.Close()

		got, err := NewClient("hf-key", srv.URL).Summarize(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		_, err := NewClient("hf-key", srv.URL).Summarize(context.Background(), "text")
		assert.Error(t, err)
	})
}
