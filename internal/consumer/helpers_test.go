package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	rediscommon "wisefido-fall/internal/common/redis"
	"wisefido-fall/internal/config"
	"wisefido-fall/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Fall.BlockTimeout = 10 * time.Millisecond
	return cfg
}

func pose(diff float64) models.PersonPose {
	p := make(models.PersonPose, models.LandmarkCount)
	for i := range p {
		p[i] = models.Keypoint{X: 0.5, Y: 0.5, Visibility: 0.9}
	}
	p[models.LandmarkLeftShoulder].Y = 0.3
	p[models.LandmarkRightShoulder].Y = 0.3
	p[models.LandmarkLeftHip].Y = 0.3 + diff
	p[models.LandmarkRightHip].Y = 0.3 + diff
	return p
}

func frameMessage(source string, index int, diff float64) *models.FrameMessage {
	return &models.FrameMessage{
		SourceID:   source,
		FrameIndex: index,
		FPS:        3,
		Persons:    models.FrameDetections{pose(diff)},
	}
}

// fallFrames fps=3：0..9 帧站立，第 10 帧倒地
func fallFrames(source string) []*models.FrameMessage {
	var msgs []*models.FrameMessage
	for i := 0; i < 10; i++ {
		msgs = append(msgs, frameMessage(source, i, 0.20))
	}
	return append(msgs, frameMessage(source, 10, 0.10))
}

func publishFrames(t *testing.T, client *redis.Client, stream string, msgs ...*models.FrameMessage) {
	t.Helper()
	for _, msg := range msgs {
		_, err := rediscommon.PublishJSONToStream(context.Background(), client, stream, msg)
		require.NoError(t, err)
	}
}

func readEvents(t *testing.T, client *redis.Client, stream string) []models.ClassifiedEvent {
	t.Helper()
	entries, err := client.XRange(context.Background(), stream, "-", "+").Result()
	require.NoError(t, err)

	events := make([]models.ClassifiedEvent, 0, len(entries))
	for _, e := range entries {
		var ce models.ClassifiedEvent
		require.NoError(t, json.Unmarshal([]byte(e.Values[rediscommon.DataField].(string)), &ce))
		events = append(events, ce)
	}
	return events
}

type fakeStore struct {
	mu      sync.Mutex
	created []*models.ClassifiedEvent
	labels  map[string]string
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{labels: make(map[string]string)}
}

func (s *fakeStore) CreateFallEvent(_ context.Context, ev *models.ClassifiedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *ev
	s.created = append(s.created, &cp)
	return nil
}

func (s *fakeStore) UpdateClassification(_ context.Context, eventID, label, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[eventID] = label
	return nil
}

func (s *fakeStore) events() []*models.ClassifiedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.ClassifiedEvent(nil), s.created...)
}

type fixedLabeler struct {
	label   string
	queried []string
}

func (l *fixedLabeler) Classify(_ context.Context, summary string) string {
	l.queried = append(l.queried, summary)
	return l.label
}
