package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/DukeRupert/radai/internal/domain"
)

// Fallback values substituted when the model reply cannot be used
const (
	FallbackPathology   = "Analysis Incomplete"
	FallbackConfidence  = 0.5
	FallbackDescription = "The AI analysis could not be completed properly. Please ensure the image is a clear X-ray and try again."
	FallbackLocation    = "chest"
	FallbackImpression  = "Unable to generate complete analysis at this time."
)

// FallbackResult returns the fixed result used in place of a malformed reply.
// Each call returns fresh slices.
func FallbackResult() AnalysisResult {
	return AnalysisResult{
		Findings: []domain.Finding{
			{
				Pathology:          FallbackPathology,
				Confidence:         FallbackConfidence,
				Description:        FallbackDescription,
				Severity:           domain.SeverityNormal,
				AnatomicalLocation: FallbackLocation,
			},
		},
		Impression: FallbackImpression,
		Recommendations: []string{
			"Verify image quality and try again",
			"If issue persists, consult with a radiologist directly",
		},
		DifferentialDiagnosis: []string{"Technical limitation"},
		UrgencyLevel:          domain.UrgencyRoutine,
	}
}

// CleanReply removes Markdown code fences the model may wrap around its JSON.
func CleanReply(text string) string {
	text = strings.ReplaceAll(text, "```json\n", "")
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```\n", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// ParseReply cleans and decodes the model text. It fails with
// EAIMalformedResult only when the text is not a JSON object or its findings
// field is not an array. Every other field is converted leniently: a string
// where a list is expected becomes a one-item list, objects are kept as
// compact JSON text, and values of other types are dropped.
func ParseReply(text string) (AnalysisResult, error) {
	var out analysisOutput
	if err := json.Unmarshal([]byte(CleanReply(text)), &out); err != nil {
		return AnalysisResult{}, fmt.Errorf("%w: %v", EAIMalformedResult, err)
	}

	raw := bytes.TrimSpace(out.Findings)
	if len(raw) == 0 || raw[0] != '[' {
		return AnalysisResult{}, fmt.Errorf("%w: findings is not an array", EAIMalformedResult)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return AnalysisResult{}, fmt.Errorf("%w: findings: %v", EAIMalformedResult, err)
	}

	findings := make([]domain.Finding, 0, len(entries))
	for _, entry := range entries {
		if f, ok := decodeFinding(entry); ok {
			findings = append(findings, f)
		}
	}

	return AnalysisResult{
		Findings:              findings,
		Impression:            textValue(out.Impression),
		Recommendations:       stringList(out.Recommendations),
		DifferentialDiagnosis: stringList(out.DifferentialDiagnosis),
		UrgencyLevel:          domain.Urgency(textValue(out.UrgencyLevel)),
	}, nil
}

// ResolveReply turns model text into an Outcome, substituting the fallback
// result when the text does not parse.
func ResolveReply(text string) *Outcome {
	result, err := ParseReply(text)
	if err != nil {
		return &Outcome{
			Result:   FallbackResult(),
			Fallback: true,
			Cause:    err,
			RawReply: text,
		}
	}
	return &Outcome{Result: result, RawReply: text}
}

// analysisOutput represents the JSON structure returned by the model.
// Fields stay raw so a single oddly typed value does not reject the reply.
type analysisOutput struct {
	Findings              json.RawMessage `json:"findings"`
	Impression            json.RawMessage `json:"impression"`
	Recommendations       json.RawMessage `json:"recommendations"`
	DifferentialDiagnosis json.RawMessage `json:"differential_diagnosis"`
	UrgencyLevel          json.RawMessage `json:"urgency_level"`
}

// decodeFinding converts one findings entry. Entries that are not JSON
// objects are skipped.
func decodeFinding(raw json.RawMessage) (domain.Finding, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Pathology:          textValue(fields["pathology"]),
		Confidence:         numberValue(fields["confidence"]),
		Description:        textValue(fields["description"]),
		Severity:           domain.Severity(textValue(fields["severity"])),
		AnatomicalLocation: textValue(fields["anatomical_location"]),
	}, true
}

// textValue returns strings unchanged and any other non-null value as its
// compact JSON text.
func textValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// numberValue accepts a JSON number or a numeric string. Anything else is 0.
func numberValue(raw json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n
		}
	}
	return 0
}

// stringList accepts a list or a single string. List items that are
// strings are kept, objects are kept as compact JSON, other items are dropped.
func stringList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		if s := textValue(raw); s != "" {
			return []string{s}
		}
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []string
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || (item[0] != '"' && item[0] != '{') {
				continue
			}
			out = append(out, textValue(item))
		}
		return out
	default:
		return nil
	}
}
