package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"tendersync/db"
	"tendersync/db/migrations"
	"tendersync/internal/config"
	"tendersync/internal/handlers"
	"tendersync/internal/ingest"
	"tendersync/internal/logging"
	"tendersync/internal/ocds"
	"tendersync/internal/search"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("cannot build logger: %v", err)
	}
	defer logger.Sync()

	dbConn, err := sqlx.Connect("postgres", cfg.PostgresConn)
	if err != nil {
		logger.Fatal("cannot connect to DB", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	store := db.NewStorage(dbConn)
	client := ocds.NewClient(cfg.OCDSBaseURL, cfg.RequestTimeout, logger.Named("ocds"))
	writer := ingest.NewWriter(store, cfg.BatchPacing, logger.Named("writer"))
	orch := ingest.NewOrchestrator(store, client, writer, cfg, logger.Named("orchestrator"))

	var indexer ingest.Indexer
	if cfg.SearchIndexURL != "" {
		indexer = search.NewIndexer(cfg.SearchIndexURL, store, logger.Named("indexer"))
	}
	scheduler := ingest.NewScheduler(orch, indexer, logger.Named("scheduler"))

	h := handlers.NewHandler(store, scheduler, client, cfg.ViewDedupWindow, logger.Named("http"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// tenders
		r.Get("/tenders", h.GetTendersHandler)
		r.Get("/tenders/{ocid}", h.GetTenderHandler)
		r.Post("/tenders/{ocid}/view", h.TrackViewHandler)
		// bookmarks
		r.Post("/bookmarks", h.AddBookmarkHandler)
		r.Get("/bookmarks", h.ListBookmarksHandler)
		r.Get("/bookmarks/{ocid}", h.GetBookmarkHandler)
		r.Delete("/bookmarks/{ocid}", h.RemoveBookmarkHandler)
		// sync & admin
		r.Post("/sync", h.SyncHandler)
		r.Get("/admin/stats", h.AdminStatsHandler)
		r.Get("/admin/syncs", h.RecentSyncsHandler)
		// document proxy
		r.Get("/documents", h.DocumentProxyHandler)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SyncInterval > 0 {
		go scheduler.Start(ctx, cfg.SyncInterval)
	}

	logger.Info("starting server", zap.String("addr", cfg.ServerAddress))
	srv := &http.Server{Addr: cfg.ServerAddress, Handler: r}
	if err := serve(ctx, srv, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server stopped")
}

// serve runs the HTTP server until ctx is cancelled, then waits for the
// graceful drain to finish before returning so in-flight requests complete.
func serve(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-drained
	return nil
}
