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

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/callerid"
	"dialer-platform/internal/config"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/scoring"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Best-effort .env load for local development; real deployments set env.
	_ = godotenv.Load()

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

	scoringSvc := scoring.NewService(scoring.NewPostgresRepo(db)).
		WithScoreTTL(cfg.Scoring.ScoreTTL).
		WithQueueLimit(cfg.Scoring.QueueLimit)
	if _, err := scoringSvc.EnsureDefaultModel(rootCtx); err != nil {
		log.Error("default scoring model init failed", "err", err)
		os.Exit(1)
	}

	calleridSvc := callerid.NewService(callerid.NewPostgresRepo(db), nil).
		WithDailyCapStore(callerid.NewDailyCapStore(rdb))

	reportingSvc := reporting.NewService(reporting.NewPostgresRepo(db))
	auditSvc := audit.NewService(audit.NewMemoryRepo())

	var dialGate dialer.DialGate
	if cfg.Dialer.MaxConcurrentOriginations > 0 {
		dialGate = dialer.NewRedisDialGate(rdb, cfg.Dialer.MaxConcurrentOriginations)
	}

	planner, err := dialer.NewPlanner(scoringSvc, calleridSvc, dialer.PlannerOptions{
		Gate: dialGate,
		LeadPhoneResolver: func(ctx context.Context, leadID string) (string, error) {
			// TODO: look up the lead's phone in the CRM-facing lead store.
			// Kept as a function injection to avoid persistence assumptions here.
			return "", errors.New("lead phone resolver not implemented")
		},
		PoolResolver: func(ctx context.Context, campaignID string) (string, error) {
			// TODO: map campaign to pool once campaign storage exists.
			return "", errors.New("pool resolver not implemented")
		},
	})
	if err != nil {
		log.Error("dialer init failed", "err", err)
		os.Exit(1)
	}

	handlers := httpapi.Handlers{
		Auth:      authManager,
		Scoring:   scoringSvc,
		CallerID:  calleridSvc,
		Dialer:    planner,
		Reporting: reportingSvc,
		Audit:     auditSvc,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, auth.RequireAccessToken(authManager), handlers)

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
