package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/floralens/identify/pkg/fingerprint"
)

type (
	// IdentificationOptions are the caller-supplied knobs that shape a
	// provider call. They participate in cache and lock keys, so two
	// requests with different options never share a cached result.
	IdentificationOptions struct {
		IncludeDiseases bool `json:"include_diseases"`
	}

	// IdentificationRequest is the immutable input to the orchestrator.
	IdentificationRequest struct {
		Image         []byte
		Fingerprint   string
		Options       IdentificationOptions
		CorrelationID string
	}

	// SpeciesCandidate is one suggested species, tagged with the provider
	// that produced it.
	SpeciesCandidate struct {
		ScientificName string   `json:"scientific_name"`
		CommonNames    []string `json:"common_names,omitempty"`
		Confidence     float64  `json:"confidence"`
		Provider       string   `json:"provider"`
	}

	// DiseaseFinding is an optional health assessment entry.
	DiseaseFinding struct {
		Name        string  `json:"name"`
		Probability float64 `json:"probability"`
		Provider    string  `json:"provider"`
	}

	// ProviderResult is the outcome of one successful provider call.
	ProviderResult struct {
		Provider    string             `json:"provider"`
		Candidates  []SpeciesCandidate `json:"candidates"`
		Diseases    []DiseaseFinding   `json:"diseases,omitempty"`
		LatencyMs   int64              `json:"latency_ms"`
		RetrievedAt time.Time          `json:"retrieved_at"`
	}

	// FailureKind classifies a failed provider attempt for provenance
	// metadata and logging.
	FailureKind string

	// ProviderOutcome records whether a provider contributed to a merged
	// result and, if not, why.
	ProviderOutcome struct {
		Provider  string      `json:"provider"`
		Succeeded bool        `json:"succeeded"`
		Failure   FailureKind `json:"failure,omitempty"`
		Detail    string      `json:"detail,omitempty"`
	}

	// ProviderAttempt pairs a provider call with its result or error.
	ProviderAttempt struct {
		Provider string
		Result   *ProviderResult
		Err      error
	}

	// MergedResult is the orchestrator's output: the union of the
	// successful provider results, built once and never mutated.
	MergedResult struct {
		Fingerprint string             `json:"fingerprint"`
		Candidates  []SpeciesCandidate `json:"candidates"`
		Diseases    []DiseaseFinding   `json:"diseases,omitempty"`
		Providers   []ProviderOutcome  `json:"providers"`
		CompletedAt time.Time          `json:"completed_at"`
	}
)

const (
	FailureTimeout         FailureKind = "timeout"
	FailureUnavailable     FailureKind = "unavailable"
	FailureRejected        FailureKind = "rejected"
	FailureImageRejected   FailureKind = "image_rejected"
	FailureInvalidResponse FailureKind = "invalid_response"
	FailureError           FailureKind = "error"
)

// NewIdentificationRequest builds a request and derives its fingerprint
// from the image bytes.
func NewIdentificationRequest(image []byte, opts IdentificationOptions, correlationID string) IdentificationRequest {
	return IdentificationRequest{
		Image:         image,
		Fingerprint:   fingerprint.Derive(image),
		Options:       opts,
		CorrelationID: correlationID,
	}
}

// CacheToken is the deterministic serialization of the options used in
// cache and lock keys.
func (o IdentificationOptions) CacheToken() string {
	if o.IncludeDiseases {
		return "diseases"
	}

	return "none"
}

// ClassifyFailure maps a provider error to its failure kind.
func ClassifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, ErrProviderTimeout):
		return FailureTimeout
	case errors.Is(err, ErrProviderUnavailable):
		return FailureUnavailable
	case errors.Is(err, ErrImageRejected):
		return FailureImageRejected
	case errors.Is(err, ErrProviderRejected):
		return FailureRejected
	case errors.Is(err, ErrInvalidResponse):
		return FailureInvalidResponse
	default:
		return FailureError
	}
}

// Merge folds the provider attempts into a single result. Candidates are
// kept per provider, not deduplicated, ordered by provider-reported
// confidence with the source tagged on each entry. When no attempt
// succeeded it returns ErrAllProvidersFailed with per-provider detail.
func Merge(fp string, attempts []ProviderAttempt) (*MergedResult, error) {
	merged := &MergedResult{
		Fingerprint: fp,
		Providers:   make([]ProviderOutcome, 0, len(attempts)),
		CompletedAt: time.Now().UTC(),
	}

	var failures []string

	for _, attempt := range attempts {
		if attempt.Err != nil || attempt.Result == nil {
			kind := FailureError
			detail := "missing result"

			if attempt.Err != nil {
				kind = ClassifyFailure(attempt.Err)
				detail = attempt.Err.Error()
			}

			merged.Providers = append(merged.Providers, ProviderOutcome{
				Provider: attempt.Provider,
				Failure:  kind,
				Detail:   detail,
			})
			failures = append(failures, fmt.Sprintf("%s: %s", attempt.Provider, kind))

			continue
		}

		merged.Providers = append(merged.Providers, ProviderOutcome{
			Provider:  attempt.Provider,
			Succeeded: true,
		})
		merged.Candidates = append(merged.Candidates, attempt.Result.Candidates...)
		merged.Diseases = append(merged.Diseases, attempt.Result.Diseases...)
	}

	if len(failures) == len(attempts) {
		return nil, fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(failures, "; "))
	}

	sort.SliceStable(merged.Candidates, func(i, j int) bool {
		return merged.Candidates[i].Confidence > merged.Candidates[j].Confidence
	})

	return merged, nil
}

// ContributingProviders lists the providers that produced candidates.
func (m *MergedResult) ContributingProviders() []string {
	providers := make([]string, 0, len(m.Providers))

	for _, outcome := range m.Providers {
		if outcome.Succeeded {
			providers = append(providers, outcome.Provider)
		}
	}

	return providers
}
