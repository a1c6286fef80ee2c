package service

import (
	"fmt"

	"wisefido-fall/internal/classifier"
	"wisefido-fall/internal/config"
	"wisefido-fall/internal/metrics"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewClassifierFromConfig 按配置创建分类器；未启用时返回 nil
// cache 为 redis 时 redisClient 必须非空
func NewClassifierFromConfig(cfg *config.Config, redisClient *redis.Client, m *metrics.Metrics, logger *zap.Logger) (*classifier.Classifier, error) {
	if !cfg.Classifier.Enabled {
		return nil, nil
	}

	var cache classifier.Cache
	switch cfg.Classifier.CacheType {
	case "file":
		fc, err := classifier.NewFileCache(cfg.Classifier.CacheFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load classification cache: %w", err)
		}
		logger.Info("Loaded classification cache",
			zap.String("path", cfg.Classifier.CacheFile),
			zap.Int("entries", fc.Len()),
		)
		cache = fc
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis client is required for the redis classification cache")
		}
		cache = classifier.NewRedisCache(redisClient, cfg.Classifier.CacheKey)
	default:
		return nil, fmt.Errorf("%w: unknown classifier cache %q", config.ErrInvalidConfig, cfg.Classifier.CacheType)
	}

	client := classifier.NewOpenAIClient(classifier.OpenAIConfig{
		BaseURL:     cfg.Classifier.BaseURL,
		APIKey:      cfg.Classifier.APIKey,
		Model:       cfg.Classifier.Model,
		Temperature: cfg.Classifier.Temperature,
		Timeout:     cfg.Classifier.Timeout,
		RetryCount:  2,
	}, logger)

	return classifier.NewClassifier(client, cache, m, logger), nil
}
