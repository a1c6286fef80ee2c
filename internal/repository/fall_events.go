package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-fall/internal/models"

	"go.uber.org/zap"
)

// ErrFallEventNotFound 事件不存在
var ErrFallEventNotFound = errors.New("fall event not found")

const fallEventsSchema = `
	CREATE TABLE IF NOT EXISTS fall_events (
		event_id      UUID PRIMARY KEY,
		source_id     TEXT NOT NULL,
		track_id      TEXT NOT NULL DEFAULT '',
		start_time    DOUBLE PRECISION NOT NULL,
		end_time      DOUBLE PRECISION NOT NULL,
		start_frame   INTEGER NOT NULL,
		end_frame     INTEGER NOT NULL,
		trigger_count INTEGER NOT NULL,
		fps           DOUBLE PRECISION NOT NULL,
		label         TEXT NOT NULL DEFAULT 'unknown',
		summary       TEXT NOT NULL DEFAULT '',
		pose_info     JSONB,
		metadata      JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_fall_events_source ON fall_events (source_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_fall_events_label ON fall_events (label);
`

const fallEventColumns = `
	event_id,
	source_id,
	track_id,
	start_time,
	end_time,
	start_frame,
	end_frame,
	trigger_count,
	fps,
	label,
	summary,
	pose_info,
	metadata,
	created_at,
	updated_at`

// FallEventsRepository 跌倒事件仓库
type FallEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFallEventsRepository 创建跌倒事件仓库
func NewFallEventsRepository(db *sql.DB, logger *zap.Logger) *FallEventsRepository {
	return &FallEventsRepository{
		db:     db,
		logger: logger,
	}
}

// FallEventFilters 事件过滤条件
type FallEventFilters struct {
	SourceID *string
	TrackID  *string
	Label    *string
	// 创建时间段（created_at >= StartTime，created_at <= EndTime）
	StartTime *time.Time
	EndTime   *time.Time
}

// EnsureSchema 建表（幂等）
func (r *FallEventsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, fallEventsSchema); err != nil {
		return fmt.Errorf("failed to create fall_events table: %w", err)
	}
	return nil
}

// CreateFallEvent 写入事件
func (r *FallEventsRepository) CreateFallEvent(ctx context.Context, ev *models.ClassifiedEvent) error {
	if ev == nil {
		return fmt.Errorf("event is required")
	}
	if ev.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if ev.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}

	var poseInfo sql.NullString
	if ev.Event.PoseInfo != nil {
		b, err := json.Marshal(ev.Event.PoseInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal pose info: %w", err)
		}
		poseInfo = sql.NullString{String: string(b), Valid: true}
	}
	metadata := ev.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	query := `
		INSERT INTO fall_events (` + fallEventColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		ev.EventID,
		ev.SourceID,
		ev.Event.TrackID,
		ev.Event.StartTime,
		ev.Event.EndTime,
		ev.Event.StartFrame,
		ev.Event.EndFrame,
		ev.Event.TriggerCount,
		ev.FPS,
		ev.Label,
		ev.Summary,
		poseInfo,
		metadata,
		ev.CreatedAt,
		ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fall event: %w", err)
	}
	return nil
}

// UpdateClassification 更新分类结果
func (r *FallEventsRepository) UpdateClassification(ctx context.Context, eventID, label, summary string) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE fall_events
		SET label = $1,
		    summary = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE event_id = $3
	`, label, summary, eventID)
	if err != nil {
		return fmt.Errorf("failed to update fall event classification: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: event_id=%s", ErrFallEventNotFound, eventID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFallEvent(row rowScanner) (*models.ClassifiedEvent, error) {
	var ev models.ClassifiedEvent
	var poseInfo, metadata []byte

	err := row.Scan(
		&ev.EventID,
		&ev.SourceID,
		&ev.Event.TrackID,
		&ev.Event.StartTime,
		&ev.Event.EndTime,
		&ev.Event.StartFrame,
		&ev.Event.EndFrame,
		&ev.Event.TriggerCount,
		&ev.FPS,
		&ev.Label,
		&ev.Summary,
		&poseInfo,
		&metadata,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(poseInfo) > 0 {
		var info models.FallPoseInfo
		if err := json.Unmarshal(poseInfo, &info); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pose info: %w", err)
		}
		ev.Event.PoseInfo = &info
	}
	if len(metadata) > 0 {
		ev.Metadata = string(metadata)
	} else {
		ev.Metadata = "{}"
	}
	return &ev, nil
}

// GetFallEvent 根据 event_id 获取事件
func (r *FallEventsRepository) GetFallEvent(ctx context.Context, eventID string) (*models.ClassifiedEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	query := `SELECT ` + fallEventColumns + `
		FROM fall_events
		WHERE event_id = $1
	`
	ev, err := scanFallEvent(r.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: event_id=%s", ErrFallEventNotFound, eventID)
		}
		return nil, fmt.Errorf("failed to get fall event: %w", err)
	}
	return ev, nil
}

// buildWhereClause 构建 WHERE 子句
func buildWhereClause(filters FallEventFilters, args *[]interface{}) string {
	var where []string
	add := func(cond string, v interface{}) {
		*args = append(*args, v)
		where = append(where, fmt.Sprintf(cond, len(*args)))
	}

	if filters.SourceID != nil {
		add("source_id = $%d", *filters.SourceID)
	}
	if filters.TrackID != nil {
		add("track_id = $%d", *filters.TrackID)
	}
	if filters.Label != nil {
		add("label = $%d", *filters.Label)
	}
	if filters.StartTime != nil {
		add("created_at >= $%d", *filters.StartTime)
	}
	if filters.EndTime != nil {
		add("created_at <= $%d", *filters.EndTime)
	}

	if len(where) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(where, " AND ")
}

// CountFallEvents 统计事件数
func (r *FallEventsRepository) CountFallEvents(ctx context.Context, filters FallEventFilters) (int, error) {
	var args []interface{}
	query := `SELECT COUNT(*) FROM fall_events ` + buildWhereClause(filters, &args)

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count fall events: %w", err)
	}
	return total, nil
}

// ListFallEvents 列表查询（按视频源和开始时间排序，分页）
func (r *FallEventsRepository) ListFallEvents(ctx context.Context, filters FallEventFilters, page, size int) ([]*models.ClassifiedEvent, int, error) {
	total, err := r.CountFallEvents(ctx, filters)
	if err != nil {
		return nil, 0, err
	}

	// 分页处理
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	var args []interface{}
	whereClause := buildWhereClause(filters, &args)
	args = append(args, size, offset)
	query := fmt.Sprintf(`SELECT %s
		FROM fall_events
		%s
		ORDER BY source_id, start_time, end_time, track_id
		LIMIT $%d OFFSET $%d
	`, fallEventColumns, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fall events: %w", err)
	}
	defer rows.Close()

	events := []*models.ClassifiedEvent{}
	for rows.Next() {
		ev, err := scanFallEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan fall event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate fall events: %w", err)
	}

	r.logger.Debug("Listed fall events",
		zap.Int("total", total),
		zap.Int("returned", len(events)),
		zap.Int("page", page),
	)
	return events, total, nil
}
