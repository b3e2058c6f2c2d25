package services

import (
	"context"
	"log/slog"
	"strings"
)

// ModerationGate screens content for harmful material. Implementations can
// be swapped for an external classifier without touching callers; the
// content type lets a classifier apply per-surface policy.
type ModerationGate interface {
	Screen(ctx context.Context, text, contentType string) (*ModerationResult, error)
}

// CrisisDetector looks for signals that the author may be in danger.
type CrisisDetector interface {
	Detect(ctx context.Context, text string) (*CrisisResult, error)
}

// KeywordModerationGate flags text containing any configured term,
// case-insensitively.
type KeywordModerationGate struct {
	terms []string
}

func NewKeywordModerationGate(terms []string) *KeywordModerationGate {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		lowered = append(lowered, strings.ToLower(t))
	}
	return &KeywordModerationGate{terms: lowered}
}

// Screen flags on the term list alone; the keyword gate applies the same
// policy to every content type.
func (g *KeywordModerationGate) Screen(_ context.Context, text, _ string) (*ModerationResult, error) {
	lowered := strings.ToLower(text)
	for _, term := range g.terms {
		if strings.Contains(lowered, term) {
			return &ModerationResult{
				Flagged:     true,
				MatchedTerm: term,
				Reason:      "harmful content detected",
			}, nil
		}
	}
	return &ModerationResult{Flagged: false}, nil
}

// Crisis confidence levels. A term match is a strong signal; its absence
// still leaves a small residual.
const (
	crisisConfidenceHigh = 0.8
	crisisConfidenceLow  = 0.1
)

// KeywordCrisisDetector matches crisis terms case-insensitively.
type KeywordCrisisDetector struct {
	terms []string
}

func NewKeywordCrisisDetector(terms []string) *KeywordCrisisDetector {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		lowered = append(lowered, strings.ToLower(t))
	}
	return &KeywordCrisisDetector{terms: lowered}
}

func (d *KeywordCrisisDetector) Detect(_ context.Context, text string) (*CrisisResult, error) {
	lowered := strings.ToLower(text)
	for _, term := range d.terms {
		if strings.Contains(lowered, term) {
			return &CrisisResult{
				Detected:    true,
				Confidence:  crisisConfidenceHigh,
				MatchedTerm: term,
			}, nil
		}
	}
	return &CrisisResult{Detected: false, Confidence: crisisConfidenceLow}, nil
}

type moderationService struct {
	gate     ModerationGate
	detector CrisisDetector
	logger   *slog.Logger
}

func NewModerationService(gate ModerationGate, detector CrisisDetector, logger *slog.Logger) ModerationService {
	return &moderationService{
		gate:     gate,
		detector: detector,
		logger:   logger,
	}
}

func (s *moderationService) Moderate(ctx context.Context, text, contentType string) (*ModerationResult, error) {
	result, err := s.gate.Screen(ctx, text, contentType)
	if err != nil {
		return nil, err
	}
	if result.Flagged {
		s.logger.Debug("Content flagged by moderation gate",
			"matched_term", result.MatchedTerm,
			"content_type", contentType)
	}
	return result, nil
}

func (s *moderationService) CheckCrisis(ctx context.Context, text string) (*CrisisResult, error) {
	result, err := s.detector.Detect(ctx, text)
	if err != nil {
		return nil, err
	}
	if result.Detected {
		s.logger.Warn("Crisis signal detected", "confidence", result.Confidence)
	}
	return result, nil
}
