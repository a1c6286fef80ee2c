// fall-replay 离线回放：读取 JSON-lines 帧文件，输出跌倒区间
//
//	fall-replay -input frames.jsonl [-xlsx report.xlsx] [-classify]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-fall/internal/classifier"
	"wisefido-fall/internal/common/logger"
	rediscommon "wisefido-fall/internal/common/redis"
	"wisefido-fall/internal/config"
	"wisefido-fall/internal/consumer"
	"wisefido-fall/internal/detector"
	"wisefido-fall/internal/models"
	"wisefido-fall/internal/pipeline"
	"wisefido-fall/internal/report"
	"wisefido-fall/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	input := flag.String("input", "-", "JSON-lines frame file, - for stdin")
	xlsxPath := flag.String("xlsx", "", "write an Excel report of the detected events")
	classify := flag.Bool("classify", false, "summarise and classify each event with the LLM classifier")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// 事件 JSON 写 stdout，日志用 console 格式写 stderr
	log, err := logger.NewLogger(cfg.Log.Level, "console", "fall-replay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *input, *xlsxPath, *classify); err != nil {
		log.Error("Replay failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, input, xlsxPath string, classify bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	assoc, err := cfg.Fall.Detection.Associator()
	if err != nil {
		return err
	}
	newDetector := func(fps float64) (*detector.Detector, error) {
		return detector.NewDetector(cfg.Fall.Detection.Params(fps), assoc, log)
	}

	start := time.Now()
	res, err := pipeline.Run(ctx, pipeline.NewJSONLinesSource(r), newDetector, pipeline.Options{
		MaxGapFrames:   cfg.Fall.Session.MaxGapFrames,
		ContextSeconds: cfg.Fall.Detection.ContextSeconds,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	log.Info("Replay finished",
		zap.String("source_id", res.SourceID),
		zap.Int("frames", res.Frames),
		zap.Int("gap_frames", res.GapFrames),
		zap.Int("data_errors", res.DataErrors),
		zap.Int("dropped_frames", res.DroppedFrames),
		zap.Int("events", len(res.Events)),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("elapsed", time.Since(start)),
	)

	params := cfg.Fall.Detection.Params(res.FPS)
	events := make([]*models.ClassifiedEvent, 0, len(res.Events))
	for _, ev := range res.Events {
		events = append(events, consumer.BuildClassifiedEvent(res.SourceID, params, ev, time.Now()))
	}

	if classify && len(events) > 0 {
		cls, closeFn, err := replayClassifier(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeFn()
		for _, ev := range events {
			ev.Label = cls.Classify(ctx, ev.Summary)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}

	if xlsxPath != "" {
		data, err := report.Generate(report.RowsFromClassified(events))
		if err != nil {
			return err
		}
		if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		log.Info("Report written", zap.String("path", xlsxPath), zap.Int("rows", len(events)))
	}
	return nil
}

// replayClassifier 强制启用分类器；Redis 缓存时连接 Redis
func replayClassifier(ctx context.Context, cfg *config.Config, log *zap.Logger) (*classifier.Classifier, func(), error) {
	cfg.Classifier.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var redisClient *redis.Client
	closeFn := func() {}
	if cfg.Classifier.CacheType == "redis" {
		redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			rediscommon.Close(redisClient)
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closeFn = func() { rediscommon.Close(redisClient) }
	}

	cls, err := service.NewClassifierFromConfig(cfg, redisClient, nil, log)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cls, closeFn, nil
}
