package classifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient 对话补全接口
type ChatClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// OpenAIConfig OpenAI 兼容接口配置
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	RetryCount  int
	RetryWait   time.Duration
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIClient OpenAI 兼容的 /chat/completions 客户端
type OpenAIClient struct {
	httpClient *resty.Client
	model      string
	temp       float64
	logger     *zap.Logger
}

// NewOpenAIClient 创建客户端，429 和 5xx 响应按配置重试
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(5*cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		}).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &OpenAIClient{
		httpClient: client,
		model:      cfg.Model,
		temp:       cfg.Temperature,
		logger:     logger,
	}
}

// Complete 实现 ChatClient，返回第一个候选的内容
func (c *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var result chatResponse
	var apiErr apiError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: c.temp,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call chat completions API: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("Chat completions API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error_type", apiErr.Error.Type),
			zap.String("msg", apiErr.Error.Message),
		)
		return "", fmt.Errorf("chat completions API error: %s (status: %d)", apiErr.Error.Message, resp.StatusCode())
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat completions API returned no choices")
	}

	c.logger.Debug("Chat completion received",
		zap.String("model", c.model),
		zap.Duration("latency", resp.Time()),
	)
	return result.Choices[0].Message.Content, nil
}
