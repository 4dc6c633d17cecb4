package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-crowdworks-watcher/internal/config"
	"go-crowdworks-watcher/internal/database"
	domainerrors "go-crowdworks-watcher/internal/errors"
	"go-crowdworks-watcher/internal/logger"
	"go-crowdworks-watcher/internal/pipeline"
	"go-crowdworks-watcher/internal/reporter"
	"go-crowdworks-watcher/internal/scheduler"
	"go-crowdworks-watcher/internal/scraper"
	"go-crowdworks-watcher/internal/scraper/crowdworks"
	"go-crowdworks-watcher/internal/snapshot"

	"go.uber.org/zap"
)

// a single crawl never runs longer than this
const runTimeout = 30 * time.Minute

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	daemon := flag.Bool("daemon", false, "keep running and crawl on the configured schedule")
	flag.Parse()

	os.Exit(run(*configPath, *daemon))
}

func run(configPath string, daemon bool) int {
	//load config
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}

	log, cleanup, err := logger.New(cfg.LogPath, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	defer cleanup()
	log.Info("🔧 Config loaded", zap.String("base_url", cfg.BaseURL), zap.String("data_dir", cfg.DataDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks, alerter, closeSinks := buildSinks(ctx, cfg, log)
	defer closeSinks()

	open := func(ctx context.Context) (scraper.Session, error) {
		s, err := crowdworks.Open(cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	opts := []pipeline.Option{pipeline.WithSinks(sinks...)}
	if alerter != nil {
		opts = append(opts, pipeline.WithAlerter(alerter))
	}
	p := pipeline.New(open,
		pipeline.NewClassifierFactory(cfg, log),
		snapshot.NewWriter(cfg.DataDir, log),
		log,
		opts...)

	crawl := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		_, err := p.Run(ctx)
		return err
	}

	if !daemon {
		if err := crawl(ctx); err != nil {
			logRunError(log, err)
		}
		return 0
	}

	s := scheduler.New(cfg.Schedule, func(ctx context.Context) error {
		if err := crawl(ctx); err != nil {
			logRunError(log, err)
		}
		return nil
	}, log)
	if err := s.Start(ctx); err != nil {
		log.Error("❌ Failed to start scheduler", zap.Error(err))
		return 1
	}

	<-ctx.Done()
	log.Info("🛑 Shutdown requested, waiting for the running crawl")
	<-s.Stop().Done()
	return 0
}

// logRunError records a failed run. A failed login ends the run but not the
// process.
func logRunError(log *zap.Logger, err error) {
	if domainerrors.IsType(err, domainerrors.ErrTypeAuth) {
		log.Error("🔒 Run aborted: could not log in", zap.Error(err))
		return
	}
	log.Error("❌ Run failed", zap.Error(err))
}

// buildSinks connects the optional outputs. The Telegram reporter doubles as
// the failure alerter.
func buildSinks(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]pipeline.Sink, pipeline.Alerter, func()) {
	var sinks []pipeline.Sink
	var alerter pipeline.Alerter
	closers := []func(){}

	if cfg.DatabaseURL != "" {
		repo, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn("⚠️ Postgres sink disabled", zap.Error(err))
		} else if err := repo.EnsureSchema(ctx); err != nil {
			log.Warn("⚠️ Postgres sink disabled", zap.Error(err))
			repo.Close()
		} else {
			log.Info("🐘 Postgres sink enabled")
			sinks = append(sinks, repo)
			closers = append(closers, repo.Close)
		}
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err := reporter.NewTelegramReporter(cfg.TelegramToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Warn("⚠️ Telegram sink disabled", zap.Error(err))
		} else {
			log.Info("🤖 Telegram sink enabled")
			sinks = append(sinks, bot)
			alerter = bot
		}
	}

	return sinks, alerter, func() {
		for _, c := range closers {
			c()
		}
	}
}
