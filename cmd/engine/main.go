package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"jobmail-engine/internal/annotate"
	"jobmail-engine/internal/bridge"
	"jobmail-engine/internal/classify"
	"jobmail-engine/internal/config"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/extract"
	"jobmail-engine/internal/httpapi"
	"jobmail-engine/internal/inbox"
	"jobmail-engine/internal/llm"
	"jobmail-engine/internal/scan"
	"jobmail-engine/internal/store"
	"jobmail-engine/internal/watch"
)

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		log.Printf("[engine] .env: %v", err)
	}

	// Engine data dir: use env if provided (a desktop shell can pass one), else local folder.
	dataDir := os.Getenv("JOBMAIL_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}
	if err := config.LoadEnv(filepath.Join(dataDir, ".env")); err != nil {
		log.Printf("[engine] .env: %v", err)
	}

	// one engine per data dir: two would annotate and store the same mail twice
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("lock data dir: %v", err)
	}
	if !locked {
		log.Fatalf("another engine is already running on %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		if err := config.OverlayKeywords(&cfg, inDataDir(dataDir, cfg.Classifier.KeywordsFile)); err != nil {
			return cfg, fmt.Errorf("keywords file: %w", err)
		}
		return cfg, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	for _, e := range vr.Errors {
		log.Printf("[config] error: %s", e)
	}
	cfgVal.Store(cfg)

	dbPath := filepath.Join(dataDir, "jobmail.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	emails := store.NewOAStore(db.Pool)

	hub := events.NewHub()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Classification: the model when one answers, keywords otherwise.
	heuristic := classify.NewHeuristic(cfg.Classifier.Keywords)
	var br *bridge.Bridge
	provider, err := llm.NewProviderFromConfig(ctx, cfg.AI.Provider, cfg.AI.Endpoint, cfg.AI.Model, cfg.AI.Region, cfg.AITimeout())
	if err != nil {
		log.Printf("[engine] ai provider: %v", err)
	} else if provider != nil {
		br = bridge.New(provider, bridge.Options{Timeout: cfg.AITimeout(), ExcerptChars: cfg.AI.ExcerptChars})
		defer br.Close()
	}
	classifier := bridge.Select(ctx, br, heuristic)
	log.Printf("[engine] classifier=%s", classifier.Name())

	var (
		scanner *scan.Scanner
		runner  httpapi.ScanRunner
		src     inbox.Source
		bgWG    sync.WaitGroup
	)
	processed := store.NewProcessedSet()
	src, err = openSource(ctx, cfg, dataDir)
	if err != nil {
		log.Printf("[engine] inbox unavailable, scanning disabled: %v", err)
	} else {
		defer src.Close()
		scanner = scan.New(scan.Deps{
			Source:     src,
			Extractor:  extract.New(),
			Classifier: classifier,
			Store:      emails,
			Processed:  processed,
			Annotator:  annotate.New(src),
			Hub:        hub,
			Stagger:    cfg.Stagger(),
		})
		runner = scanner

		w := watch.New(src, scanner, watch.Options{
			Debounce:     cfg.Debounce(),
			PollInterval: cfg.PollInterval(),
		})
		bgWG.Add(1)
		go func() {
			defer bgWG.Done()
			w.Run(ctx)
		}()
	}

	inboxName := "none"
	if src != nil {
		inboxName = src.Name()
	}
	mux := httpapi.NewMux(httpapi.Deps{
		DB:             db,
		Emails:         emails,
		Hub:            hub,
		Processed:      processed,
		Bridge:         br,
		CfgVal:         &cfgVal,
		UserCfgPath:    userCfgPath,
		LoadCfg:        loadCfg,
		Scanner:        runner,
		ScanCtx:        ctx,
		ScanWG:         &bgWG,
		InboxName:      inboxName,
		ClassifierName: classifier.Name(),
	})

	token := os.Getenv("JOBMAIL_SHUTDOWN_TOKEN")
	if token == "" {
		if token, err = randomToken(16); err != nil {
			log.Fatal(err)
		}
	}
	mux.HandleFunc("/shutdown", shutdownHandler(token, stop))

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("engine listening on http://%s (db=%s)", addr, dbPath)

	srv := &http.Server{
		Handler: httpapi.Chain(mux,
			httpapi.RequestID,
			httpapi.Recover,
			httpapi.AccessLog,
			httpapi.Cors(cfg.App.AllowedOrigins),
		),
		ReadHeaderTimeout: 5 * time.Second,
		// SSE streams end when the engine stops
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[engine] serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Printf("[engine] shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("[engine] http shutdown: %v", err)
	}
	bgWG.Wait()
	if err := db.Checkpoint(shutCtx); err != nil {
		log.Printf("[engine] wal checkpoint: %v", err)
	}
}
