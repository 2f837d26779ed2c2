package classify

import (
	"context"

	"jobmail-engine/internal/domain"
)

// Classifier is the strategy the scanner holds for labelling and summarizing
// email content. Implementations never fail; they degrade instead.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, content string) domain.Classification
	Summarize(ctx context.Context, content string) string
}

const SummaryLength = 200

// Truncate keeps the first n runes of s and appends "..." when something was cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n < 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
