package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bryanwahyu/automaton-comply/internal/application"
	appanalysis "github.com/bryanwahyu/automaton-comply/internal/application/analysis"
	appdocs "github.com/bryanwahyu/automaton-comply/internal/application/documents"
	"github.com/bryanwahyu/automaton-comply/internal/config"
	domanalysis "github.com/bryanwahyu/automaton-comply/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-comply/internal/domain/retrieval"
	openaic "github.com/bryanwahyu/automaton-comply/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/automaton-comply/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/automaton-comply/internal/infra/db/postgres"
	"github.com/bryanwahyu/automaton-comply/internal/infra/extractor"
	"github.com/bryanwahyu/automaton-comply/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/automaton-comply/internal/infra/storage"
	"github.com/bryanwahyu/automaton-comply/internal/infra/tasks"
	"github.com/bryanwahyu/automaton-comply/internal/middleware"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	ctx := context.Background()

	// connect MySQL (primary store)
	db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("mysql connect error")
	}
	defer db.Close()

	// init repos
	docRepo := mysqlp.NewDocumentRepository(db)
	chunkRepo := mysqlp.NewChunkRepository(db)
	questionRepo := mysqlp.NewQuestionRepository(db)
	trailRepo := mysqlp.NewAuditLogRepository(db)

	// suggestions and jobs can live on postgres when configured
	var suggestionRepo domanalysis.SuggestionRepository = mysqlp.NewSuggestionRepository(db)
	var jobRepo domanalysis.JobRepository = mysqlp.NewJobRepository(db)
	if cfg.Database.Driver == "postgres" {
		pg, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect error")
		}
		defer pg.Close()
		suggestionRepo = postgresp.NewSuggestionRepository(pg)
		jobRepo = postgresp.NewJobRepository(pg)
	}

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("minio init error")
	}

	// AI client stays nil without credentials; analysis then fails with a
	// clear precondition error instead of a broken outbound call
	var aiClient *openaic.Client
	if cfg.OpenAI.APIKey != "" {
		aiClient = openaic.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		logger.Warn().Msg("no OpenAI API key configured, analysis endpoints will refuse")
	}

	embedder := retrieval.NewEmbedder(cfg.Ingestion.EmbeddingDim)
	runner := tasks.NewRunner(logger, 1, 2*time.Second)

	docsSvc := &appdocs.Service{
		Docs:         docRepo,
		Chunks:       chunkRepo,
		Blobs:        store,
		Extract:      extractor.New(),
		Trail:        trailRepo,
		Tasks:        runner,
		Clock:        application.SystemClock{},
		Embedder:     embedder,
		Logger:       logger,
		ChunkSize:    cfg.Ingestion.ChunkSize,
		ChunkOverlap: cfg.Ingestion.ChunkOverlap,
	}

	analysisSvc := &appanalysis.Service{
		Jobs:        jobRepo,
		Suggestions: suggestionRepo,
		Questions:   questionRepo,
		Docs:        docRepo,
		Chunks:      chunkRepo,
		Blobs:       store,
		Trail:       trailRepo,
		Clock:       application.SystemClock{},
		Embedder:    embedder,
		Limiter:     rate.NewLimiter(rate.Every(time.Duration(cfg.Analysis.PacingMS)*time.Millisecond), 1),
		Logger:      logger,
		Opts: appanalysis.Options{
			BatchSize:            cfg.Analysis.BatchSize,
			TopK:                 cfg.Analysis.TopK,
			InteractiveChunks:    cfg.Analysis.InteractiveChunks,
			BatchThreshold:       cfg.Analysis.BatchThreshold,
			InteractiveThreshold: cfg.Analysis.InteractiveThreshold,
			MaxImages:            cfg.Analysis.MaxImages,
			MaxTokens:            cfg.Analysis.MaxTokens,
		},
	}
	if aiClient != nil {
		analysisSvc.Client = aiClient
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Actor"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(100, 50))

	mux.Get("/healthz", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)

	mux.Mount("/", httpserver.NewRouter(docsSvc, analysisSvc, questionRepo, trailRepo))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	// let in-flight ingestion finish before exit
	runner.Wait()
}
