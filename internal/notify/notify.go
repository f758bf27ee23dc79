// Package notify publishes upload progress over Redis Pub/Sub. The websocket
// handler subscribes to the same channel and forwards payloads verbatim.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message statuses.
const (
	StatusProgress = "progress"
	StatusDone     = "done"
	StatusError    = "error"
)

// Message is the JSON payload pushed to the browser.
type Message struct {
	Status        string `json:"status"`
	Stage         string `json:"stage"`
	SessionID     string `json:"session_id"`
	ResultID      uint   `json:"result_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// Publisher delivers messages to one user.
type Publisher interface {
	Publish(ctx context.Context, userID uint, msg Message) error
}

// Channel is the Pub/Sub channel for userID.
func Channel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON messages with PUBLISH.
type RedisPublisher struct {
	client redisPublisher
}

// NewRedisPublisher wraps a go-redis client.
func NewRedisPublisher(client redisPublisher) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, userID uint, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notify message: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish notify message: %w", err)
	}
	return nil
}

// Recorder keeps published messages in memory.
type Recorder struct {
	mu       sync.Mutex
	Messages []Message
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, _ uint, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, msg)
	return nil
}

// Stages returns the recorded stage names in order.
func (r *Recorder) Stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, m.Stage)
	}
	return out
}
