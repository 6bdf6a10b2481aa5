package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/domain"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing. ReplyText, when set, is run
	// through the same parsing as a real model reply.
	AnalyzeResponse *ai.AnalysisResult
	ReplyText       string
	AnalyzeError    error

	// Gate, when non-nil, blocks Analyze until it receives or is closed
	Gate chan struct{}

	// Call tracking for testing
	AnalyzeCalls int
}

var _ ai.Analyzer = (*Provider)(nil)

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Name identifies the provider
func (p *Provider) Name() string {
	return "mock"
}

// Analyze returns a canned reading of a chest X-ray
func (p *Provider) Analyze(ctx context.Context, params ai.AnalyzeParams) (*ai.Outcome, error) {
	p.mu.Lock()
	p.AnalyzeCalls++
	gate := p.Gate
	response, reply, analyzeErr := p.AnalyzeResponse, p.ReplyText, p.AnalyzeError
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// If a custom response or error is set, use it
	if analyzeErr != nil {
		return nil, analyzeErr
	}
	usage := ai.UsageInfo{
		Model:        "mock-ai-v1",
		InputTokens:  1250,
		OutputTokens: 420,
		Duration:     250 * time.Millisecond,
	}
	if reply != "" {
		outcome := ai.ResolveReply(reply)
		outcome.Usage = usage
		return outcome, nil
	}
	if response != nil {
		return &ai.Outcome{Result: *response, Usage: usage}, nil
	}

	// Default canned response
	return &ai.Outcome{
		Result: ai.AnalysisResult{
			Findings: []domain.Finding{
				{
					Pathology:          "Cardiomegaly",
					Confidence:         0.92,
					Description:        "Cardiothoracic ratio approximately 0.58 with enlargement of the cardiac silhouette.",
					Severity:           domain.SeverityModerate,
					AnatomicalLocation: "Mediastinum",
				},
				{
					Pathology:          "Pleural Effusion",
					Confidence:         0.71,
					Description:        "Blunting of the left costophrenic angle consistent with a small effusion.",
					Severity:           domain.SeverityMild,
					AnatomicalLocation: "LLL",
				},
			},
			Impression: "Cardiomegaly with a small left pleural effusion. No pneumothorax or focal consolidation.",
			Recommendations: []string{
				"Echocardiogram to assess cardiac function",
				"Clinical correlation with BNP levels",
			},
			DifferentialDiagnosis: []string{
				"Congestive heart failure",
				"Pericardial effusion",
			},
			UrgencyLevel: domain.UrgencyUrgent,
		},
		Usage: usage,
	}, nil
}

// Calls returns the number of Analyze calls so far
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AnalyzeCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AnalyzeCalls = 0
	p.AnalyzeResponse = nil
	p.ReplyText = ""
	p.AnalyzeError = nil
	p.Gate = nil
}

// SetAnalyzeError makes subsequent Analyze calls fail with err
func (p *Provider) SetAnalyzeError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AnalyzeError = err
}
