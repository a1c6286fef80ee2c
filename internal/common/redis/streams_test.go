package redis

import (
	"context"
	"testing"
	"time"

	"wisefido-fall/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = Close(client) })
	return client
}

func TestPing(t *testing.T) {
	client := setupMiniredis(t)
	assert.NoError(t, Ping(context.Background(), client))
}

func TestPing_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client := NewRedisClient(&config.RedisConfig{Addr: addr})
	defer Close(client)

	err = Ping(context.Background(), client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping redis at "+addr)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}

func TestCreateConsumerGroup_Idempotent(t *testing.T) {
	client := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "pose:frames:stream", "fall-detector"))
	require.NoError(t, CreateConsumerGroup(ctx, client, "pose:frames:stream", "fall-detector"))
}

func TestPublishAndRead(t *testing.T) {
	client := setupMiniredis(t)
	ctx := context.Background()
	stream, group := "pose:frames:stream", "fall-detector"
	require.NoError(t, CreateConsumerGroup(ctx, client, stream, group))

	id, err := PublishJSONToStream(ctx, client, stream, map[string]interface{}{"source_id": "cam1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	messages, err := ReadFromStream(ctx, client, stream, group, "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, id, messages[0].ID)

	data, err := messages[0].Data()
	require.NoError(t, err)
	assert.JSONEq(t, `{"source_id":"cam1"}`, data)

	require.NoError(t, Ack(ctx, client, stream, group, id))
	pending, err := client.XPending(ctx, stream, group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestReadFromStream_Empty(t *testing.T) {
	client := setupMiniredis(t)
	ctx := context.Background()
	require.NoError(t, CreateConsumerGroup(ctx, client, "s", "g"))

	messages, err := ReadFromStream(ctx, client, "s", "g", "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestPublishToStream_Stringifies(t *testing.T) {
	client := setupMiniredis(t)
	ctx := context.Background()

	_, err := PublishToStream(ctx, client, "s", map[string]interface{}{
		"count": 3,
		"fps":   2.5,
		"eos":   true,
		"tags":  []string{"a"},
	})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, "s", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "3", msgs[0].Values["count"])
	assert.Equal(t, "2.5", msgs[0].Values["fps"])
	assert.Equal(t, "true", msgs[0].Values["eos"])
	assert.Equal(t, `["a"]`, msgs[0].Values["tags"])
}

func TestStreamMessage_Data(t *testing.T) {
	_, err := StreamMessage{ID: "1-0", Values: map[string]interface{}{}}.Data()
	assert.Error(t, err)

	_, err = StreamMessage{ID: "1-0", Values: map[string]interface{}{"data": 1}}.Data()
	assert.Error(t, err)
}
