package anthropic

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
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// MaxTokens bounds the length of a reading
	MaxTokens = 2000
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	ProviderConfig ai.ProviderConfig
}

// Provider implements the Analyzer interface using Anthropic's Messages API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

var _ ai.Analyzer = (*Provider)(nil)

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) *Provider {
	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
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
	return "anthropic"
}

// Analyze reads a chest X-ray using Claude
func (p *Provider) Analyze(ctx context.Context, params ai.AnalyzeParams) (*ai.Outcome, error) {
	startTime := time.Now()

	if p.config.APIKey == "" {
		return nil, ai.WrapError("analyze", fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ai.EAIConfigMissing))
	}
	if params.Image == nil || params.Image.Data == "" {
		return nil, ai.WrapError("analyze", ai.EAIInvalidImage)
	}

	// Build the request
	req, err := p.buildAnalyzeRequest(ctx, params.Image)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeRequest(req)
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	// Get the text content
	var textContent string
	for _, content := range resp.Content {
		if content.Type == "text" {
			textContent = content.Text
			break
		}
	}
	if textContent == "" {
		return nil, ai.WrapError("parse response", ai.EAINoResponse)
	}

	outcome := ai.ResolveReply(textContent)
	outcome.Usage = ai.UsageInfo{
		Model:        p.config.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Duration:     time.Since(startTime),
	}

	if outcome.Fallback {
		p.logger.Warn("Claude reply could not be parsed, using fallback result",
			"report_id", params.ReportID,
			"error", outcome.Cause,
		)
	}

	return outcome, nil
}

// buildAnalyzeRequest builds the HTTP request for image analysis
func (p *Provider) buildAnalyzeRequest(ctx context.Context, image *ai.Image) (*http.Request, error) {
	// Build the request body
	reqBody := apiRequest{
		Model:       p.config.Model,
		MaxTokens:   MaxTokens,
		Temperature: 0.1,
		Messages: []apiMessage{
			{
				Role: "user",
				Content: []apiContent{
					{
						Type: "image",
						Source: &apiImageSource{
							Type:      "base64",
							MediaType: image.MediaType,
							Data:      image.Data,
						},
					},
					{
						Type: "text",
						Text: ai.AnalysisInstruction(),
					},
				},
			},
		},
	}

	// Marshal to JSON
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	return req, nil
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(req *http.Request) (*apiResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ai.ServiceError{Provider: "Anthropic", Err: err}
	}
	defer resp.Body.Close()

	// Read response body
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ai.ServiceError{Provider: "Anthropic", StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	// Check for errors based on status code
	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	// Parse successful response
	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ai.EAINoResponse, err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to AI errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	// Try to parse error response
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	p.logger.Error("Anthropic API error", "status", statusCode, "type", errResp.Error.Type, "message", errResp.Error.Message)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	default:
		msg := errResp.Error.Message
		if msg == "" {
			msg = string(body)
		}
		return &ai.ServiceError{Provider: "Anthropic", StatusCode: statusCode, Body: msg}
	}
}

// API request/response types

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	Messages    []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []apiContentOutput `json:"content"`
	Model   string             `json:"model"`
	Usage   apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
