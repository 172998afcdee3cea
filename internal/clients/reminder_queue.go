package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"invoicetrack/internal/domain"
)

// ReminderOutboxKey is the Redis list the messaging gateway drains.
const ReminderOutboxKey = "reminders:outbox"

// ReminderQueue hands reminder requests to the messaging gateway through a
// Redis list and mirrors each one to websocket subscribers.
type ReminderQueue struct {
	redis    *RedisClient
	notifier *WebSocketClient
}

func NewReminderQueue(redis *RedisClient, notifier *WebSocketClient) *ReminderQueue {
	return &ReminderQueue{redis: redis, notifier: notifier}
}

func (q *ReminderQueue) Send(ctx context.Context, req domain.ReminderRequest) error {
	if q.redis == nil {
		return fmt.Errorf("reminder outbox not configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode reminder: %w", err)
	}
	if err := q.redis.RPush(ctx, ReminderOutboxKey, payload); err != nil {
		return fmt.Errorf("push reminder %s: %w", req.ID, err)
	}

	channels := make([]string, len(req.Channels))
	for i, c := range req.Channels {
		channels[i] = string(c)
	}
	_ = q.notifier.NotifyReminder(ctx, req.Candidate, channels, "queued")
	return nil
}

// Pending returns up to limit queued requests, oldest first.
func (q *ReminderQueue) Pending(ctx context.Context, limit int64) ([]domain.ReminderRequest, error) {
	if q.redis == nil {
		return nil, fmt.Errorf("reminder outbox not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	raw, err := q.redis.LRange(ctx, ReminderOutboxKey, 0, limit-1)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ReminderRequest, 0, len(raw))
	for _, r := range raw {
		var req domain.ReminderRequest
		if err := json.Unmarshal([]byte(r), &req); err != nil {
			return nil, fmt.Errorf("decode reminder: %w", err)
		}
		out = append(out, req)
	}
	return out, nil
}
