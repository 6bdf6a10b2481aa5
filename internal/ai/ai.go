package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/radai/internal/domain"
)

// Analyzer defines the interface for AI-powered chest X-ray interpretation
type Analyzer interface {
	// Analyze sends one image to the remote model and returns its reading.
	//
	// A transport failure is returned as an error. A reply that arrives but
	// cannot be parsed is not an error: the returned Outcome carries the
	// fallback result and Fallback is true.
	Analyze(ctx context.Context, params AnalyzeParams) (*Outcome, error)

	// Name identifies the provider in logs and metrics
	Name() string
}

// AnalyzeParams contains parameters for image analysis
type AnalyzeParams struct {
	Image    *Image // Decoded data URI
	ReportID string // Optional: for log correlation only
}

// AnalysisResult is the structured reading produced by the model
type AnalysisResult struct {
	Findings              []domain.Finding
	Impression            string
	Recommendations       []string
	DifferentialDiagnosis []string
	UrgencyLevel          domain.Urgency
}

// Outcome distinguishes a parsed reply from the fallback substituted for a
// malformed one.
type Outcome struct {
	Result   AnalysisResult
	Fallback bool      // True when Result is the fixed fallback
	Cause    error     // Why the reply was rejected; nil when Fallback is false
	Usage    UsageInfo // Token usage reported by the provider
	RawReply string    // Model text as received, before cleanup
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	// RequestTimeout bounds a single request. Zero leaves the transport
	// default in place, which never times out.
	RequestTimeout time.Duration
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit or quota has been exceeded
	EAIRateLimit = errors.New("rate limit exceeded, please try again in a moment")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("invalid API key or quota exceeded")

	// EAIServiceError indicates any other non-success transport response
	EAIServiceError = errors.New("ai service error")

	// EAINoResponse indicates the reply carried no text to parse
	EAINoResponse = errors.New("no response from ai service")

	// EAIMalformedResult indicates the reply text was not a valid analysis.
	// It is recorded on a fallback Outcome and never returned from Analyze.
	EAIMalformedResult = errors.New("malformed analysis result")

	// EAIInvalidImage indicates the image format or content is invalid
	EAIInvalidImage = errors.New("invalid image format or content")

	// EAIConfigMissing indicates the provider credential is not configured
	EAIConfigMissing = errors.New("ai provider is not configured")
)

// ServiceError carries the status and body of a failed model call.
type ServiceError struct {
	Provider   string
	StatusCode int // Zero for network errors
	Body       string
	Err        error // Network error, if any
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error: %d", e.Provider, e.StatusCode)
}

// Is matches EAIServiceError so callers can test the category.
func (e *ServiceError) Is(target error) bool {
	return target == EAIServiceError
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
