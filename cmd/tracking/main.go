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

	"github.com/cloudsecnetwork/phishintel/internal/config"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/logger"
	"github.com/cloudsecnetwork/phishintel/internal/repository/postgres"
	"github.com/cloudsecnetwork/phishintel/internal/tracking"
)

// Standalone tracking server. Deploy this one on the public edge; the admin
// server never has to be reachable from recipient networks.
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

	handler := tracking.NewHandler(postgres.NewTrackingRepo(db), postgres.NewEngagementRepo(db))
	srv := tracking.NewServer(handler)

	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.TrackingPort)
		logger.Info("tracking server listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("tracking server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down tracking server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
