package bridge

import (
	"context"
	"log"
	"strings"

	"jobmail-engine/internal/classify"
	"jobmail-engine/internal/domain"
)

// ModelClassifier asks the model through the bridge and falls back to the
// heuristic for any call that cannot be answered.
type ModelClassifier struct {
	bridge   *Bridge
	fallback classify.Classifier
}

func NewModelClassifier(b *Bridge, fallback classify.Classifier) *ModelClassifier {
	return &ModelClassifier{bridge: b, fallback: fallback}
}

func (m *ModelClassifier) Name() string { return "model:" + m.bridge.ProviderName() }

func (m *ModelClassifier) Classify(ctx context.Context, content string) domain.Classification {
	if !m.bridge.Ready() {
		return m.fallback.Classify(ctx, content)
	}
	out, err := m.bridge.Call(ctx, TypeClassify, content)
	if err != nil {
		log.Printf("[bridge] classify failed, using keywords: %v", err)
		return m.fallback.Classify(ctx, content)
	}
	return domain.ParseClassification(out)
}

func (m *ModelClassifier) Summarize(ctx context.Context, content string) string {
	if m.bridge.Ready() {
		out, err := m.bridge.Call(ctx, TypeSummarize, content)
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		if err != nil {
			log.Printf("[bridge] summarize failed, truncating: %v", err)
		}
	}
	return classify.Truncate(content, classify.SummaryLength)
}

// Select picks the classification strategy once at startup.
func Select(ctx context.Context, b *Bridge, heuristic classify.Classifier) classify.Classifier {
	if b == nil {
		return heuristic
	}
	if err := b.Init(ctx); err != nil {
		log.Printf("[bridge] ai unavailable, keyword detection only: %v", err)
		return heuristic
	}
	return NewModelClassifier(b, heuristic)
}
