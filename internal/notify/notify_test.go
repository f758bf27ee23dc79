package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	channel string
	payload []byte
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload = message.([]byte)
	return redis.NewIntResult(1, nil)
}

func TestRedisPublisher(t *testing.T) {
	fake := &fakeRedis{}
	p := NewRedisPublisher(fake)

	err := p.Publish(context.Background(), 7, Message{Status: StatusDone, Stage: "cleared", SessionID: "s1", ResultID: 3})
	require.NoError(t, err)
	assert.Equal(t, "user_notify:7", fake.channel)

	var got Message
	require.NoError(t, json.Unmarshal(fake.payload, &got))
	assert.Equal(t, uint(3), got.ResultID)
	assert.Equal(t, "cleared", got.Stage)
}

func TestRecorderStages(t *testing.T) {
	r := &Recorder{}
	_ = r.Publish(context.Background(), 1, Message{Stage: "a"})
	_ = r.Publish(context.Background(), 1, Message{Stage: "b"})
	assert.Equal(t, []string{"a", "b"}, r.Stages())
}
