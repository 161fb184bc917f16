package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"intigra/features/document"
	"intigra/features/job"
	"intigra/features/query"
	"intigra/features/stats"
	"intigra/internal/answer"
	"intigra/internal/config"
	"intigra/internal/extract"
	"intigra/internal/index"
	"intigra/internal/ingest"
	"intigra/internal/metrics"
	"intigra/internal/middleware"
	"intigra/internal/retrieval"
	"intigra/internal/settings"
	"intigra/internal/shard"
	"intigra/internal/text"
	"intigra/internal/worker"
)

type App struct {
	Handler      http.Handler
	Jobs         *job.Service
	Query        *query.Service
	Index        *index.Service
	IndexReload  *worker.IndexReloadConsumer
	Metrics      *metrics.Metrics
	LocalEvents  *worker.LocalPublisher
	cfg          *config.Config
	queryLog     *retrieval.QueryLogger
	nsqConsumers []*nsq.Consumer
}

// New wires every feature. A nil pub delivers job events in process.
func New(cfg *config.Config, db *sql.DB, pub job.EventPublisher, prov *Providers) (*App, error) {
	if prov == nil {
		return nil, errors.New("model providers are required")
	}
	m := metrics.New()

	// Feature: Settings
	settingsService := settings.NewService(settings.NewPostgresRepo(db), settings.Settings{
		RerankThreshold:  cfg.RerankThreshold,
		MaxRetrievalPool: cfg.MaxRetrievalPool,
		DefaultTopK:      cfg.DefaultTopK,
	})
	settingsHandler := settings.NewHandler(settingsService)

	// Feature: Documents
	shards := shard.NewStore(cfg.StorageDir)
	documentService := document.NewService(document.NewPostgresRepo(db), shards)
	documentHandler := document.NewHandler(documentService)

	// Embedding index
	idx := index.New(documentService, shards, m)
	indexHandler := index.NewHandler(idx)
	reload := worker.NewIndexReloadConsumer(idx)

	a := &App{Index: idx, IndexReload: reload, Metrics: m, cfg: cfg}
	if pub == nil {
		a.LocalEvents = worker.NewLocalPublisher()
		if cfg.IndexReloadOnJobComplete {
			a.LocalEvents.Subscribe(config.TopicJobEvents, reload)
		}
		pub = a.LocalEvents
	}

	// Feature: Jobs
	jobRepo := job.NewPostgresRepo(db)
	a.Jobs = job.NewService(jobRepo, job.Pipeline{
		Collector: ingest.NewCollector(cfg.SupportedExtensions),
		Extractor: extract.New(),
		Chunker:   text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		Embedder:  prov.Embedder,
		Store:     documentService,
	}, pub, m)
	jobHandler := job.NewHandler(a.Jobs)

	// Feature: Query
	queryLog, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLog = retrieval.NewQueryLogger(os.Stdout)
	}
	a.queryLog = queryLog

	retriever := retrieval.NewService(prov.Embedder, idx, prov.Reranker, settingsService)
	a.Query = query.NewService(retriever, answer.NewSynthesizer(prov.Generator), settingsService, queryLog, m)
	queryHandler := query.NewHandler(a.Query)

	// Feature: Stats
	statsHandler := stats.NewHandler(documentService, a.Jobs, idx)

	// Routes
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(middleware.CORS(h)))
	}

	route("POST /v1/ingest", jobHandler.Ingest)
	route("GET /v1/task-status/{id}", jobHandler.Status)
	route("GET /v1/jobs", jobHandler.List)

	route("POST /v1/query", queryHandler.Query)
	route("GET /v1/documents", documentHandler.List)
	route("GET /v1/stats", statsHandler.GetStats)

	route("GET /v1/settings", settingsHandler.GetSettings)
	route("PUT /v1/settings", settingsHandler.UpdateSettings)

	route("POST /v1/index/reload", indexHandler.Reload)

	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	a.Handler = middleware.Recover(mux)
	return a, nil
}

// Run serves HTTP until ctx is done, then drains in-flight jobs.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.EnableEvents && a.cfg.IndexReloadOnJobComplete {
		if err := a.startIndexReloadConsumer(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	a.Jobs.Wait()
	return nil
}

func (a *App) startIndexReloadConsumer() error {
	consumer, err := nsq.NewConsumer(config.TopicJobEvents, config.ChannelIndexReload, nsq.NewConfig())
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(a.IndexReload)

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		consumer.Stop()
		return fmt.Errorf("nsq connect error: %w", err)
	}
	a.nsqConsumers = append(a.nsqConsumers, consumer)
	slog.Info("index reload consumer started", "topic", config.TopicJobEvents, "channel", config.ChannelIndexReload)
	return nil
}

// Close stops consumers and flushes the query log.
func (a *App) Close() {
	for _, c := range a.nsqConsumers {
		c.Stop()
		<-c.StopChan
	}
	if err := a.queryLog.Close(); err != nil {
		slog.Warn("failed to close query log", "error", err)
	}
}
