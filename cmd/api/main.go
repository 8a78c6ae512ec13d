package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcenter-crm/internal/audit"
	"callcenter-crm/internal/auth"
	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/completion"
	"callcenter-crm/internal/config"
	"callcenter-crm/internal/httpapi"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/orgs"
	"callcenter-crm/internal/phonecfg"
	"callcenter-crm/internal/recording"
	"callcenter-crm/internal/routing"
	"callcenter-crm/internal/training"
	"callcenter-crm/internal/transcribe"
	"callcenter-crm/pkg/logger"
	"callcenter-crm/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Repositories
	callRepo := calls.NewPGRepo(db)
	leadRepo := leads.NewPGLeadRepo(db)
	prospectRepo := leads.NewPGProspectRepo(db)
	activityRepo := leads.NewPGActivityRepo(db)
	followUpRepo := leads.NewPGFollowUpRepo(db)
	trainingRepo := training.NewPGRepo(db)
	policyRepo := phonecfg.NewPGRepo(db)
	directory := orgs.NewCachedDirectory(orgs.NewPGDirectory(db), rdb, 5*time.Minute)
	auditRecorder := audit.NewRecorder(audit.NewPGRepo(db))

	// Transcription engines; a missing key just means the engine is absent
	// and the recording handler degrades to the provider transcript.
	engines := transcribe.NewRegistry()
	if openAI, err := transcribe.NewOpenAI(cfg.Transcribe.OpenAIAPIKey); err == nil {
		engines.Register(phonecfg.TranscriptionOpenAI, openAI)
	} else {
		log.Warn("openai transcription unavailable", "err", err)
	}
	if deepgram, err := transcribe.NewDeepgram(cfg.Transcribe.DeepgramAPIKey); err == nil {
		engines.Register(phonecfg.TranscriptionDeepgram, deepgram)
	} else {
		log.Warn("deepgram transcription unavailable", "err", err)
	}

	// Core services
	engine := routing.NewEngine(callRepo, leadRepo, prospectRepo, followUpRepo, trainingRepo, directory)
	recordingHandler := recording.NewHandler(callRepo, followUpRepo, prospectRepo, trainingRepo, engines)
	completionSvc := completion.NewService(completion.NewPGStore(db))

	webhooks := &httpapi.WebhookHandler{
		Engine:    engine,
		Recording: recordingHandler,
		Policies:  policyRepo,
		Orgs:      directory,
		Audit:     auditRecorder,
		Redis:     rdb,
	}
	activities := &httpapi.ActivityHandler{
		Completion: completionSvc,
		Activities: activityRepo,
		Audit:      auditRecorder,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, auth.RequireAccessToken(authManager), webhooks, activities, db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
