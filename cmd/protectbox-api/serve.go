package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"protectbox/internal/ai"
	"protectbox/internal/api"
	"protectbox/internal/auth"
	"protectbox/internal/config"
	"protectbox/internal/db"
	"protectbox/internal/forms"
	"protectbox/internal/jobs"
	"protectbox/internal/lookup"
	"protectbox/internal/pubsub"
	"protectbox/internal/schema"
	"protectbox/internal/service"
	"protectbox/internal/storage"
	"protectbox/internal/store"
	"protectbox/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Storage: Postgres when configured, otherwise process memory
	var st store.Store
	if cfg.Database.URL != "" {
		dbPool, err := db.NewPool(ctx, cfg.Database.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbPool.Close()
		st = dbPool.Queries
	} else {
		logger.Warn("No database configured, using the in-memory store")
		st = store.NewMemory()
	}

	// Redis is optional; without it events stay in-process and no jobs run
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	bus := pubsub.New(rdb, logger)

	hub := ws.NewHub(logger)
	if streams := bus.GetStreams(); streams != nil {
		hub.SetStreamsProvider(&wsStreamsAdapter{streams: streams})
	}
	go hub.Run()
	bus.SetWSHub(hub)

	files, err := storage.NewLocalStorage(cfg.Attachments.BaseDir, cfg.Attachments.BaseURL)
	if err != nil {
		return err
	}

	schemaComp := schema.NewCompilerWithCache(64, time.Hour)
	if err := forms.RegisterSchemas(schemaComp); err != nil {
		return fmt.Errorf("failed to register form schemas: %w", err)
	}

	requestSvc := service.NewRequestService(st, bus, logger)
	caseSvc := service.NewCaseService(st, bus, files, cfg.Attachments.Policy(), logger)
	missionSvc := service.NewMissionService(st, bus, logger)
	summarizer := ai.NewSummarizer(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MinNarrativeLength, logger)
	formSvc := service.NewFormService(st, schemaComp, summarizer, bus, logger)

	if rdb != nil {
		jobServer, jobClient := jobs.NewJobServer(cfg.Redis.Addr, st, bus, logger)
		go func() {
			if err := jobServer.Start(); err != nil {
				logger.Fatal("Job server failed", zap.Error(err))
			}
		}()
		defer jobServer.Stop()

		jc := service.NewAsynqJobClient(jobClient)
		requestSvc.SetJobClient(jc)
		caseSvc.SetJobClient(jc)
		missionSvc.SetJobClient(jc)
	}

	hub.SetCommandHandler(ws.NewCommandHandler(missionSvc, logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// WebSocket connections outlive any request timeout
			if req.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, req)
				return
			}
			middleware.Timeout(cfg.Server.RequestTimeout)(next).ServeHTTP(w, req)
		})
	})

	r.Mount("/", api.Routes(api.Dependencies{
		Requests: requestSvc,
		Cases:    caseSvc,
		Missions: missionSvc,
		Forms:    formSvc,
		Registry: lookup.NewCachedRegistry(lookup.SampleRegistry(), cfg.Lookup.CacheSize, cfg.Lookup.CacheTTL, logger),
		Criminal: lookup.NewCachedCriminalCases(lookup.SampleCriminalCases(), cfg.Lookup.CacheSize, cfg.Lookup.CacheTTL, logger),
		Files:    files,
		Auth:     auth.NewJWTConfig(cfg.Auth.JWTSecret, cfg.Auth.DevHeaders),
		Hub:      hub,
		Log:      logger,
	}))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	logger.Info("Starting server", zap.String("addr", cfg.Server.Addr), zap.Bool("redis", rdb != nil), zap.Bool("postgres", cfg.Database.URL != ""))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}

// wsStreamsAdapter adapts pubsub.Streams to ws.StreamsProvider
type wsStreamsAdapter struct {
	streams *pubsub.Streams
}

func (a *wsStreamsAdapter) GetLastSequence(channel, connectionID string) (int64, error) {
	return a.streams.GetLastSequence(channel, connectionID)
}

func (a *wsStreamsAdapter) AcknowledgeSequence(channel, connectionID string, sequence int64) error {
	return a.streams.AcknowledgeSequence(channel, connectionID, sequence)
}

func (a *wsStreamsAdapter) ReplayEvents(channel string, sinceSeq int64, limit int64) ([]ws.StreamEvent, error) {
	events, err := a.streams.ReplayEvents(channel, sinceSeq, limit)
	if err != nil {
		return nil, err
	}

	wsEvents := make([]ws.StreamEvent, len(events))
	for i, e := range events {
		wsEvents[i] = ws.StreamEvent{
			Channel:   e.Channel,
			Sequence:  e.Sequence,
			Event:     e.Event,
			Timestamp: e.Timestamp,
		}
	}
	return wsEvents, nil
}
