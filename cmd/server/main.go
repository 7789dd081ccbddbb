package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/cloudsecnetwork/phishintel/internal/api"
	"github.com/cloudsecnetwork/phishintel/internal/config"
	"github.com/cloudsecnetwork/phishintel/internal/dispatch"
	"github.com/cloudsecnetwork/phishintel/internal/mailer"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/distlock"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/logger"
	"github.com/cloudsecnetwork/phishintel/internal/repository/postgres"
	"github.com/cloudsecnetwork/phishintel/internal/service/campaign"
	"github.com/cloudsecnetwork/phishintel/internal/tracking"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}
	cancel()

	// Redis is optional; without it the run lock falls back to Postgres
	// advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	campaignRepo := postgres.NewCampaignRepo(db)
	trackingRepo := postgres.NewTrackingRepo(db)
	audienceRepo := postgres.NewAudienceRepo(db)
	profileRepo := postgres.NewProfileRepo(db)
	templateRepo := postgres.NewTemplateRepo(db)
	engagementRepo := postgres.NewEngagementRepo(db)

	m := mailer.New(cfg.SMTP.SendTimeout())

	lockFactory := func(campaignID string) distlock.DistLock {
		return distlock.NewLock(redisClient, db,
			distlock.CampaignRunKey(campaignID), cfg.Dispatch.LockTTL())
	}
	engine := dispatch.New(campaignRepo, trackingRepo, audienceRepo, profileRepo,
		&dispatch.TemplateContent{Templates: templateRepo}, m, lockFactory,
		dispatch.Config{
			PublicBaseURL: cfg.Tracking.PublicBaseURL,
			SignInPath:    cfg.Tracking.SignInPath,
			SendTimeout:   cfg.SMTP.SendTimeout(),
		})

	svc := campaign.NewService(campaignRepo, trackingRepo, audienceRepo,
		profileRepo, templateRepo, m, engine, campaign.Options{
			TokenLength:     cfg.Tracking.TokenLength,
			MaxTokenRetries: cfg.Dispatch.MaxTokenRetries,
		})

	adminSrv := api.NewServer(api.NewHandlers(svc, engagementRepo), cfg.Server.AllowedOrigins)
	go func() {
		addr := listenAddr(cfg.Server.Port)
		logger.Info("admin server listening", "addr", addr)
		if err := adminSrv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server", "error", err)
			os.Exit(1)
		}
	}()

	// The tracking endpoints also run in-process here for single-binary
	// deployments; cmd/tracking serves them standalone.
	trackingSrv := tracking.NewServer(tracking.NewHandler(trackingRepo, engagementRepo))
	go func() {
		addr := listenAddr(cfg.Server.TrackingPort)
		logger.Info("tracking server listening", "addr", addr)
		if err := trackingSrv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("tracking server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(ctx); err != nil {
		logger.Error("admin shutdown", "error", err)
	}
	if err := trackingSrv.Shutdown(ctx); err != nil {
		logger.Error("tracking shutdown", "error", err)
	}
}

func listenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
