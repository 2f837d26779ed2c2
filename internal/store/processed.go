package store

import "sync"

// ProcessedSet remembers which thread ids this run has already handled.
// It is never persisted; a restart re-examines the visible inbox and the
// unique id in oa_emails keeps stored entries from duplicating.
type ProcessedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{ids: make(map[string]struct{})}
}

func (p *ProcessedSet) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[id]
	return ok
}

// Mark records id and reports whether it was new.
func (p *ProcessedSet) Mark(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.ids[id]; ok {
		return false
	}
	p.ids[id] = struct{}{}
	return true
}

// Len is the number of ids handled so far; zero for a nil set.
func (p *ProcessedSet) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}
