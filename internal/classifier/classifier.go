// Package classifier 使用 LLM 对跌倒事件摘要分类（knockdown / takedown / slip），结果按摘要内容缓存
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"wisefido-fall/internal/metrics"
	"wisefido-fall/internal/models"

	"go.uber.org/zap"
)

const systemPrompt = "You are an expert MMA fight event classifier. You are given a description of a fall event " +
	"and you need to classify it as either a knockdown, takedown, or slip."

const userPromptTemplate = `
You are an expert MMA fight analyst. Classify the type of fall described below as either:
- knockdown
- takedown
- slip

Description:
"""
%s
"""

Respond only with the classification.
`

var knownLabels = []string{models.LabelKnockdown, models.LabelTakedown, models.LabelSlip}

// Classifier 带缓存的事件分类器，可被多个 goroutine 同时使用
type Classifier struct {
	client  ChatClient
	cache   Cache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClassifier 创建分类器；metrics 可以为 nil
func NewClassifier(client ChatClient, cache Cache, m *metrics.Metrics, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		client:  client,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// HashText 摘要文本的 SHA-256（十六进制）
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Classify 返回事件标签
// 缓存命中直接返回；未命中时调用 LLM，得到可识别的标签后写入缓存。
// 调用失败或回复无法识别时返回 unknown，不写缓存。
func (c *Classifier) Classify(ctx context.Context, summary string) string {
	key := HashText(summary)

	label, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to read classification cache, calling model",
			zap.String("cache_key", key),
			zap.Error(err),
		)
	} else if ok {
		c.metrics.Classified(metrics.ClassifyHit)
		return label
	}

	reply, err := c.client.Complete(ctx, []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(userPromptTemplate, summary)},
	})
	if err != nil {
		c.metrics.Classified(metrics.ClassifyFailure)
		c.logger.Error("LLM classification failed", zap.Error(err))
		return models.LabelUnknown
	}

	label = NormalizeLabel(reply)
	if label == models.LabelUnknown {
		c.metrics.Classified(metrics.ClassifyFailure)
		c.logger.Warn("LLM returned an unrecognized classification", zap.String("reply", reply))
		return label
	}

	c.metrics.Classified(metrics.ClassifyMiss)
	if err := c.cache.Set(ctx, key, label); err != nil {
		c.logger.Warn("Failed to write classification cache",
			zap.String("cache_key", key),
			zap.Error(err),
		)
	}
	return label
}

// NormalizeLabel 把模型回复归一化为已知标签，无法唯一识别时返回 unknown
func NormalizeLabel(reply string) string {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(reply), ".\"'`*"))
	for _, l := range knownLabels {
		if s == l {
			return l
		}
	}

	found := models.LabelUnknown
	for _, l := range knownLabels {
		if strings.Contains(s, l) {
			if found != models.LabelUnknown {
				return models.LabelUnknown
			}
			found = l
		}
	}
	return found
}
