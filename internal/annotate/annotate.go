package annotate

import (
	"context"
	"fmt"

	"jobmail-engine/internal/inbox"
)

// Marker is the part of an inbox source the annotator needs.
type Marker interface {
	Mark(ctx context.Context, row *inbox.Row) error
}

// Annotator visibly tags OA rows in the mailbox: an IMAP keyword flag or a
// Gmail label, depending on the source.
type Annotator struct {
	m Marker
}

func New(m Marker) *Annotator {
	return &Annotator{m: m}
}

// Annotate marks row once. A row that already carries the mark is left alone,
// so repeated calls never stack a second tag.
func (a *Annotator) Annotate(ctx context.Context, row *inbox.Row) error {
	if row == nil || row.Marked {
		return nil
	}
	if err := a.m.Mark(ctx, row); err != nil {
		return fmt.Errorf("annotate %s: %w", row.Ref, err)
	}
	row.Marked = true
	return nil
}
