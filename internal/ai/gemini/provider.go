package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/radai/internal/ai"
)

const (
	// DefaultBaseURL is the base URL for the Gemini API
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultModel is the default Gemini model to use
	DefaultModel = "gemini-2.0-flash-exp"

	// Temperature keeps readings as deterministic as the model allows
	Temperature = 0.1

	// MaxOutputTokens bounds the length of a reading
	MaxOutputTokens = 2000

	// maxErrorBody caps how much of an error response is kept
	maxErrorBody = 4096
)

// Config contains configuration for the Gemini provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	ProviderConfig ai.ProviderConfig
}

// Provider implements the Analyzer interface using the Gemini generateContent API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

var _ ai.Analyzer = (*Provider)(nil)

// New creates a new Gemini provider. A missing API key is not an error here;
// Analyze reports it before making any request.
func New(config Config, logger *slog.Logger) *Provider {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}
}

// Name identifies the provider
func (p *Provider) Name() string {
	return "gemini"
}

// Analyze sends the X-ray to Gemini and parses the reading
func (p *Provider) Analyze(ctx context.Context, params ai.AnalyzeParams) (*ai.Outcome, error) {
	startTime := time.Now()

	if p.config.APIKey == "" {
		return nil, ai.WrapError("analyze", fmt.Errorf("%w: GEMINI_API_KEY is not set", ai.EAIConfigMissing))
	}
	if params.Image == nil || params.Image.Data == "" {
		return nil, ai.WrapError("analyze", ai.EAIInvalidImage)
	}

	req, err := p.buildRequest(ctx, params.Image)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	// Single attempt; the caller decides whether to try again
	resp, err := p.executeRequest(req)
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	text, err := firstText(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	outcome := ai.ResolveReply(text)
	outcome.Usage = ai.UsageInfo{
		Model:        p.config.Model,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		Duration:     time.Since(startTime),
	}

	if outcome.Fallback {
		p.logger.Warn("Gemini reply could not be parsed, using fallback result",
			"report_id", params.ReportID,
			"error", outcome.Cause,
			"reply_length", len(text),
		)
	}

	return outcome, nil
}

// buildRequest builds the HTTP request for image analysis
func (p *Provider) buildRequest(ctx context.Context, image *ai.Image) (*http.Request, error) {
	reqBody := apiRequest{
		Contents: []apiContent{
			{
				Parts: []apiPart{
					{Text: ai.AnalysisInstruction()},
					{InlineData: &apiInlineData{
						MimeType: image.MediaType,
						Data:     image.Data,
					}},
				},
			},
		},
		GenerationConfig: apiGenerationConfig{
			Temperature:     Temperature,
			MaxOutputTokens: MaxOutputTokens,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.config.BaseURL, p.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	return req, nil
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(req *http.Request) (*apiResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ai.ServiceError{Provider: "Gemini", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ai.ServiceError{Provider: "Gemini", StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Error("Gemini API error", "status", resp.StatusCode, "body", truncate(string(bodyBytes), 512))
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ai.EAINoResponse, err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to AI errors
func mapHTTPError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	default:
		return &ai.ServiceError{
			Provider:   "Gemini",
			StatusCode: statusCode,
			Body:       truncate(string(body), maxErrorBody),
		}
	}
}

// firstText returns the first text part of the first candidate
func firstText(resp *apiResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked: %s", ai.EAINoResponse, resp.PromptFeedback.BlockReason)
		}
		return "", ai.EAINoResponse
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return "", ai.EAINoResponse
	}
	return parts[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// API request/response types

type apiRequest struct {
	Contents         []apiContent        `json:"contents"`
	GenerationConfig apiGenerationConfig `json:"generationConfig"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inline_data,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type apiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type apiResponse struct {
	Candidates     []apiCandidate    `json:"candidates"`
	PromptFeedback apiPromptFeedback `json:"promptFeedback"`
	UsageMetadata  apiUsageMetadata  `json:"usageMetadata"`
}

type apiCandidate struct {
	Content      apiContent `json:"content"`
	FinishReason string     `json:"finishReason"`
}

type apiPromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type apiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}
