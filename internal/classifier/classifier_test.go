package classifier

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"wisefido-fall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChatClient struct {
	mock.Mock
}

func (m *mockChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key, label string) error {
	return m.Called(ctx, key, label).Error(0)
}

const testSummary = "The fighter falls at 2.0s and stays grounded until 2.2s for 0.2 seconds."

func newFileCache(t *testing.T) *FileCache {
	t.Helper()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	return c
}

func TestHashText(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashText(""))
	assert.Len(t, HashText(testSummary), 64)
}

func TestClassify_MissCallsModelAndCaches(t *testing.T) {
	ctx := context.Background()
	client := &mockChatClient{}
	client.On("Complete", ctx, mock.MatchedBy(func(msgs []ChatMessage) bool {
		return len(msgs) == 2 && msgs[0].Role == "system" && msgs[1].Role == "user" &&
			strings.Contains(msgs[1].Content, testSummary)
	})).Return("Knockdown.", nil).Once()

	cache := newFileCache(t)
	c := NewClassifier(client, cache, nil, nil)

	assert.Equal(t, models.LabelKnockdown, c.Classify(ctx, testSummary))
	label, ok, _ := cache.Get(ctx, HashText(testSummary))
	assert.True(t, ok)
	assert.Equal(t, models.LabelKnockdown, label)

	// 第二次命中缓存，不再调用模型
	assert.Equal(t, models.LabelKnockdown, c.Classify(ctx, testSummary))
	client.AssertExpectations(t)
}

func TestClassify_FailureReturnsUnknownWithoutCaching(t *testing.T) {
	ctx := context.Background()
	client := &mockChatClient{}
	client.On("Complete", ctx, mock.Anything).Return("", errors.New("timeout")).Twice()

	cache := newFileCache(t)
	c := NewClassifier(client, cache, nil, nil)

	assert.Equal(t, models.LabelUnknown, c.Classify(ctx, testSummary))
	assert.Equal(t, 0, cache.Len())

	// 失败不缓存，下次重新调用
	assert.Equal(t, models.LabelUnknown, c.Classify(ctx, testSummary))
	client.AssertExpectations(t)
}

func TestClassify_UnrecognizedReplyNotCached(t *testing.T) {
	ctx := context.Background()
	client := &mockChatClient{}
	client.On("Complete", ctx, mock.Anything).Return("I cannot tell.", nil).Once()

	cache := newFileCache(t)
	assert.Equal(t, models.LabelUnknown, NewClassifier(client, cache, nil, nil).Classify(ctx, testSummary))
	assert.Equal(t, 0, cache.Len())
}

func TestClassify_CacheReadErrorFallsBackToModel(t *testing.T) {
	ctx := context.Background()
	key := HashText(testSummary)

	cache := &mockCache{}
	cache.On("Get", ctx, key).Return("", false, errors.New("connection refused"))
	cache.On("Set", ctx, key, models.LabelSlip).Return(errors.New("connection refused"))

	client := &mockChatClient{}
	client.On("Complete", ctx, mock.Anything).Return("slip", nil)

	assert.Equal(t, models.LabelSlip, NewClassifier(client, cache, nil, nil).Classify(ctx, testSummary))
	cache.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestClassify_CacheHitSkipsModel(t *testing.T) {
	ctx := context.Background()
	cache := &mockCache{}
	cache.On("Get", ctx, HashText(testSummary)).Return(models.LabelTakedown, true, nil)

	client := &mockChatClient{}
	assert.Equal(t, models.LabelTakedown, NewClassifier(client, cache, nil, nil).Classify(ctx, testSummary))
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"knockdown":             models.LabelKnockdown,
		" Takedown.\n":          models.LabelTakedown,
		"**slip**":              models.LabelSlip,
		"This is a knockdown":   models.LabelKnockdown,
		"knockdown or takedown": models.LabelUnknown,
		"":                      models.LabelUnknown,
		"the fighter stumbled":  models.LabelUnknown,
	}
	for reply, want := range cases {
		assert.Equal(t, want, NormalizeLabel(reply), "reply %q", reply)
	}
}
