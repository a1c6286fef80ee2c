package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 分类结果
const (
	ClassifyHit     = "hit"
	ClassifyMiss    = "miss"
	ClassifyFailure = "failure"
)

// Metrics 跌倒检测服务指标
// 所有方法对 nil 接收者安全，离线工具可以不启用指标
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed    prometheus.Counter
	frameErrors        *prometheus.CounterVec
	triggers           prometheus.Counter
	candidates         *prometheus.CounterVec
	trackResets        prometheus.Counter
	classifications    *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	frameProcessTimeMs prometheus.Histogram
}

// New 创建指标并注册到独立的 registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fall_frames_processed_total",
			Help: "Total frames fed to fall detectors",
		}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fall_frame_errors_total",
			Help: "Frame messages that could not be processed, by reason",
		}, []string{"reason"}),
		triggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fall_triggers_total",
			Help: "Total fall trigger frames",
		}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fall_candidates_total",
			Help: "Closed trigger groups, by duration filter result",
		}, []string{"result"}),
		trackResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fall_track_resets_total",
			Help: "Track state resets caused by empty frames",
		}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fall_classifications_total",
			Help: "Event classifications, by cache outcome",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fall_active_sessions",
			Help: "Video sources with an open detection session",
		}),
		frameProcessTimeMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fall_frame_process_ms",
			Help:    "Per-frame detector processing time in milliseconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 50},
		}),
	}

	m.registry.MustRegister(
		m.framesProcessed,
		m.frameErrors,
		m.triggers,
		m.candidates,
		m.trackResets,
		m.classifications,
		m.activeSessions,
		m.frameProcessTimeMs,
	)
	return m
}

// FrameProcessed 记录一帧处理完成
func (m *Metrics) FrameProcessed(d time.Duration) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.frameProcessTimeMs.Observe(float64(d.Microseconds()) / 1000)
}

// FrameError 记录无法处理的帧消息（parse, data, late, gap, gap_overflow）
func (m *Metrics) FrameError(reason string) {
	if m == nil {
		return
	}
	m.frameErrors.WithLabelValues(reason).Inc()
}

// Triggers 记录触发帧数
func (m *Metrics) Triggers(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.triggers.Add(float64(n))
}

// Candidates 记录关闭的分组（accepted 为通过时长过滤的事件数）
func (m *Metrics) Candidates(accepted, discarded int) {
	if m == nil {
		return
	}
	if accepted > 0 {
		m.candidates.WithLabelValues("accepted").Add(float64(accepted))
	}
	if discarded > 0 {
		m.candidates.WithLabelValues("discarded").Add(float64(discarded))
	}
}

// TrackReset 记录一次 track 重置
func (m *Metrics) TrackReset() {
	if m == nil {
		return
	}
	m.trackResets.Inc()
}

// Classified 记录一次分类（hit, miss, failure）
func (m *Metrics) Classified(outcome string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(outcome).Inc()
}

// SetActiveSessions 当前会话数
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Registry 返回指标 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer 启动 /metrics HTTP 服务，ctx 取消时关闭
func (m *Metrics) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
