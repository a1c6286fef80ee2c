package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"wisefido-fall/internal/common/config"
	"wisefido-fall/internal/detector"
)

// ErrInvalidConfig 配置不合法
var ErrInvalidConfig = errors.New("invalid config")

// Detection 检测参数（时间窗口以秒为单位，按视频源的 fps 换算为帧数）
type Detection struct {
	AlignThreshold      float64
	DropThreshold       float64
	WindowSeconds       float64
	StandWindowSeconds  float64
	MinDuration         float64
	MaxDuration         float64
	CenterVisibility    float64
	ScanPolicy          string // first, all
	CloseOnQuiet        bool
	EmptyFrameTolerance int
	Association         string  // greedy, optimal
	ContextSeconds      float64 // 事件开始前统计击打标注的时长，0 表示不统计
}

// ContextFrames 按视频源 fps 换算击打上下文帧数
func (d Detection) ContextFrames(fps float64) int {
	return detector.FramesFromSeconds(d.ContextSeconds, fps)
}

// Config 跌倒检测服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Fall struct {
		Detection Detection

		// MQTT 主题（pose/{source_id}/frames）
		Topics struct {
			Frames string
		}

		// Redis Streams
		Stream struct {
			Input  string // 帧消息流
			Output string // 事件流
		}
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int64
		BlockTimeout  time.Duration

		Session struct {
			IdleTimeout   time.Duration // 视频源静默超过该时长视为结束
			ReorderWindow int           // 乱序缓冲的最大帧数，超出后缺失帧按空帧处理
			MaxGapFrames  int           // 帧号跳变超过该值时结束当前会话并从新帧号重新开始
		}
	}

	Classifier struct {
		Enabled     bool
		APIKey      string
		BaseURL     string
		Model       string
		Timeout     time.Duration
		CacheType   string // redis, file
		CacheFile   string
		CacheKey    string // Redis hash
		Temperature float64
	}

	Metrics struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlrd")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-fall")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	d := &cfg.Fall.Detection
	d.AlignThreshold = getEnvFloat("FALL_ALIGN_THRESHOLD", 0.08)
	d.DropThreshold = getEnvFloat("FALL_DROP_THRESHOLD", 0.15)
	d.WindowSeconds = getEnvFloat("FALL_WINDOW_SECONDS", 2.0)
	d.StandWindowSeconds = getEnvFloat("FALL_STAND_WINDOW_SECONDS", 2.0)
	d.MinDuration = getEnvFloat("FALL_MIN_DURATION", 0.3)
	d.MaxDuration = getEnvFloat("FALL_MAX_DURATION", 10.0)
	d.CenterVisibility = getEnvFloat("FALL_CENTER_VISIBILITY", 0.3)
	d.ScanPolicy = getEnv("FALL_SCAN_POLICY", string(detector.ScanFirstTrigger))
	d.CloseOnQuiet = getEnvBool("FALL_CLOSE_ON_QUIET", true)
	d.EmptyFrameTolerance = getEnvInt("FALL_EMPTY_FRAME_TOLERANCE", 0)
	d.Association = getEnv("FALL_ASSOCIATION", "greedy")
	d.ContextSeconds = getEnvFloat("FALL_CONTEXT_SECONDS", 2.0)

	cfg.Fall.Topics.Frames = getEnv("FALL_MQTT_TOPIC", "pose/+/frames")
	cfg.Fall.Stream.Input = getEnv("FALL_INPUT_STREAM", "pose:frames:stream")
	cfg.Fall.Stream.Output = getEnv("FALL_OUTPUT_STREAM", "fall:events:stream")
	cfg.Fall.ConsumerGroup = getEnv("FALL_CONSUMER_GROUP", "fall-detector-group")
	cfg.Fall.ConsumerName = getEnv("FALL_CONSUMER_NAME", "fall-detector-1")
	cfg.Fall.BatchSize = int64(getEnvInt("FALL_BATCH_SIZE", 100))
	cfg.Fall.BlockTimeout = time.Duration(getEnvInt("FALL_BLOCK_MS", 2000)) * time.Millisecond
	cfg.Fall.Session.IdleTimeout = time.Duration(getEnvFloat("FALL_SESSION_IDLE_SECONDS", 60) * float64(time.Second))
	cfg.Fall.Session.ReorderWindow = getEnvInt("FALL_REORDER_WINDOW", 50)
	cfg.Fall.Session.MaxGapFrames = getEnvInt("FALL_MAX_GAP_FRAMES", 1000)

	cfg.Classifier.Enabled = getEnvBool("FALL_CLASSIFIER_ENABLED", false)
	cfg.Classifier.APIKey = getEnv("OPENAI_API_KEY", "")
	cfg.Classifier.BaseURL = getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.Classifier.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")
	cfg.Classifier.Timeout = time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 30)) * time.Second
	cfg.Classifier.CacheType = getEnv("FALL_CLASSIFIER_CACHE", "redis")
	cfg.Classifier.CacheFile = getEnv("FALL_CLASSIFIER_CACHE_FILE", "classification_cache.json")
	cfg.Classifier.CacheKey = getEnv("FALL_CLASSIFIER_CACHE_KEY", "fall:classification:cache")
	cfg.Classifier.Temperature = getEnvFloat("OPENAI_TEMPERATURE", 0)

	cfg.Metrics.Addr = getEnv("METRICS_ADDR", ":9108")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	d := c.Fall.Detection
	if d.WindowSeconds <= 0 || d.StandWindowSeconds < 0 {
		return fmt.Errorf("%w: window seconds must be positive", ErrInvalidConfig)
	}
	if d.MinDuration < 0 || d.MaxDuration < d.MinDuration {
		return fmt.Errorf("%w: duration bounds [%v, %v] are invalid", ErrInvalidConfig, d.MinDuration, d.MaxDuration)
	}
	if d.ContextSeconds < 0 {
		return fmt.Errorf("%w: context seconds must be non-negative", ErrInvalidConfig)
	}
	if d.EmptyFrameTolerance < 0 {
		return fmt.Errorf("%w: empty frame tolerance must be non-negative", ErrInvalidConfig)
	}
	switch detector.ScanPolicy(d.ScanPolicy) {
	case detector.ScanFirstTrigger, detector.ScanAllTracks:
	default:
		return fmt.Errorf("%w: unknown scan policy %q", ErrInvalidConfig, d.ScanPolicy)
	}
	if _, err := detector.NewAssociator(d.Association); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Classifier.CacheType {
	case "redis", "file":
	default:
		return fmt.Errorf("%w: unknown classifier cache %q", ErrInvalidConfig, c.Classifier.CacheType)
	}
	if c.Classifier.Enabled && c.Classifier.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is required when the classifier is enabled", ErrInvalidConfig)
	}
	if c.Fall.Session.ReorderWindow < 1 {
		return fmt.Errorf("%w: reorder window must be at least 1", ErrInvalidConfig)
	}
	if c.Fall.Session.MaxGapFrames < 1 {
		return fmt.Errorf("%w: max gap frames must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Params 按视频源 fps 生成检测参数
func (d Detection) Params(fps float64) detector.Params {
	return detector.Params{
		FPS:                 fps,
		AlignThreshold:      d.AlignThreshold,
		DropThreshold:       d.DropThreshold,
		Window:              detector.FramesFromSeconds(d.WindowSeconds, fps),
		StandWindow:         detector.FramesFromSeconds(d.StandWindowSeconds, fps),
		MinDuration:         d.MinDuration,
		MaxDuration:         d.MaxDuration,
		CenterVisibility:    d.CenterVisibility,
		ScanPolicy:          detector.ScanPolicy(d.ScanPolicy),
		CloseOnQuiet:        d.CloseOnQuiet,
		EmptyFrameTolerance: d.EmptyFrameTolerance,
	}
}

// Associator 按配置创建关联策略
func (d Detection) Associator() (detector.Associator, error) {
	return detector.NewAssociator(d.Association)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
