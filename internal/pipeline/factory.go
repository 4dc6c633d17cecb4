package pipeline

import (
	"context"
	"time"

	"go-crowdworks-watcher/internal/ai"
	"go-crowdworks-watcher/internal/cache/redis"
	"go-crowdworks-watcher/internal/config"
	"go-crowdworks-watcher/internal/relevance"

	"go.uber.org/zap"
)

const llmTimeout = 60 * time.Second

// NewClassifierFactory re-reads the configuration and the filter config on
// every batch, so edits to either take effect on the next run without a
// restart. A fresh LLM client is built each time.
func NewClassifierFactory(base *config.Config, log *zap.Logger) ClassifierFactory {
	return func(ctx context.Context) (*relevance.Classifier, func()) {
		cfg, err := base.Reload()
		if err != nil {
			log.Warn("⚠️ Config reload failed, using the loaded config", zap.Error(err))
			cfg = base
		}

		filterCfg, err := config.LoadFilterConfig(cfg.PromptPath)
		if err != nil {
			log.Warn("⚠️ Filter config unusable, using defaults",
				zap.String("path", cfg.PromptPath),
				zap.Error(err))
		}

		client := ai.NewOpenAIClient(cfg.APIKey, cfg.LLMBaseURL, llmTimeout)
		opts := []relevance.Option{relevance.WithConcurrency(cfg.FilterConcurrency)}
		release := func() {}

		if cfg.RedisURL != "" {
			c, err := redis.New(ctx, cfg.RedisURL, "crowdworks:")
			if err != nil {
				log.Warn("⚠️ Decision cache unavailable", zap.Error(err))
			} else {
				opts = append(opts, relevance.WithCache(c))
				release = func() { _ = c.Close() }
			}
		}

		return relevance.NewClassifier(client, filterCfg, log, opts...), release
	}
}
