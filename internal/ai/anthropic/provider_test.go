package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(url string) *Provider {
	return New(Config{APIKey: "sk-test", BaseURL: url}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestProvider_Analyze(t *testing.T) {
	var got apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(apiResponse{
			Content: []apiContentOutput{
				{Type: "text", Text: `{"findings":[{"pathology":"Atelectasis","confidence":0.64,"description":"Linear opacity"}],"impression":"Mild atelectasis."}`},
			},
			Usage: apiUsage{InputTokens: 900, OutputTokens: 120},
		})
	}))
	defer srv.Close()

	outcome, err := newTestProvider(srv.URL).Analyze(context.Background(), ai.AnalyzeParams{
		Image: &ai.Image{MediaType: "image/jpeg", Data: "/9j/4AAQ"},
	})
	require.NoError(t, err)

	assert.False(t, outcome.Fallback)
	require.Len(t, outcome.Result.Findings, 1)
	assert.Equal(t, "Atelectasis", outcome.Result.Findings[0].Pathology)
	assert.Equal(t, 900, outcome.Usage.InputTokens)

	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, "image", got.Messages[0].Content[0].Type)
	assert.Equal(t, "image/jpeg", got.Messages[0].Content[0].Source.MediaType)
	assert.Equal(t, "/9j/4AAQ", got.Messages[0].Content[0].Source.Data)
}

func TestProvider_Analyze_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, ai.EAIRateLimit},
		{"bad key", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, ai.EAIUnauthorized},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, ai.EAIServiceError},
		{"no text block", http.StatusOK, `{"content":[]}`, ai.EAINoResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestProvider(srv.URL).Analyze(context.Background(), ai.AnalyzeParams{
				Image: &ai.Image{MediaType: "image/jpeg", Data: "/9j/4AAQ"},
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestProvider_Analyze_MissingKey(t *testing.T) {
	p := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := p.Analyze(context.Background(), ai.AnalyzeParams{Image: &ai.Image{MediaType: "image/jpeg", Data: "x"}})
	assert.ErrorIs(t, err, ai.EAIConfigMissing)
}
