package classify

import (
	"context"
	"strings"

	"jobmail-engine/internal/domain"
)

type Keywords struct {
	OA        []string `yaml:"oa"`
	Rejection []string `yaml:"rejection"`
	Status    []string `yaml:"status"`
}

func DefaultKeywords() Keywords {
	return Keywords{
		OA: []string{
			"online assessment", "oa invite", "coding test", "hackerrank", "codesignal",
			"codility", "technical assessment", "coding challenge", "take-home assignment",
			"programming test", "assessment link", "complete the assessment", "leetcode",
			"online coding", "timed assessment", "technical evaluation", "coding assignment",
		},
		Rejection: []string{"unfortunately", "not moving forward", "not selected"},
		Status:    []string{"application", "status", "interview"},
	}
}

// Heuristic is the keyword fallback. OA phrases win over rejection phrases,
// which win over status phrases.
type Heuristic struct {
	oa, rejection, status []string
}

func NewHeuristic(k Keywords) *Heuristic {
	return &Heuristic{
		oa:        lowerAll(k.OA),
		rejection: lowerAll(k.Rejection),
		status:    lowerAll(k.Status),
	}
}

func (h *Heuristic) Name() string { return "keywords" }

func (h *Heuristic) Classify(_ context.Context, content string) domain.Classification {
	lc := strings.ToLower(content)
	switch {
	case containsAny(lc, h.oa):
		return domain.OAInvite
	case containsAny(lc, h.rejection):
		return domain.Rejection
	case containsAny(lc, h.status):
		return domain.StatusUpdate
	default:
		return domain.Other
	}
}

func (h *Heuristic) Summarize(_ context.Context, content string) string {
	return Truncate(content, SummaryLength)
}

func containsAny(lc string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(lc, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
