package httpapi

import (
	"context"
	"sync"
	"sync/atomic"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/scan"
	"jobmail-engine/internal/store"
)

// ScanRunner is what the API needs from the scan orchestrator.
type ScanRunner interface {
	Scan(ctx context.Context) (scan.Report, error)
	Status() scan.Status
}

type Deps struct {
	DB     *store.DB
	Emails *store.OAStore

	Hub *events.Hub

	// Processed and Bridge feed the /health counters; both may be nil.
	Processed *store.ProcessedSet
	Bridge    PendingCounter

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Scanner is nil when the inbox could not be opened.
	Scanner ScanRunner
	// ScanCtx bounds scans started over HTTP; ScanWG tracks them for shutdown.
	ScanCtx context.Context
	ScanWG  *sync.WaitGroup

	InboxName      string
	ClassifierName string
}
