package clients

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicetrack/internal/domain"
)

// redisForTest connects to REDIS_TEST_ADDR under a throwaway prefix.
func redisForTest(t *testing.T) *RedisClient {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	c, err := NewRedisClient(RedisConfig{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		Timeout:     2 * time.Second,
		Prefix:      "invoicetrack-test:" + uuid.NewString() + ":",
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRedisClientLock(t *testing.T) {
	c := redisForTest(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "lock:INV-1", "a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "lock:INV-1", "b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, c.ReleaseLock(ctx, "lock:INV-1", "b"))
	require.NoError(t, c.ReleaseLock(ctx, "lock:INV-1", "a"))

	ok, err = c.AcquireLock(ctx, "lock:INV-1", "b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisClientMissingKey(t *testing.T) {
	c := redisForTest(t)
	_, err := c.Get(context.Background(), "nope")
	assert.True(t, IsMissing(err))
}

func TestReminderQueueRoundTrip(t *testing.T) {
	c := redisForTest(t)
	q := NewReminderQueue(c, nil)
	ctx := context.Background()

	req := domain.ReminderRequest{
		ID:        uuid.NewString(),
		Candidate: domain.ReminderCandidate{InvoiceNo: "INV-7", Tier: domain.TierCritical},
		Channels:  []domain.Channel{domain.ChannelEmail},
		Contact:   domain.ContactInfo{Email: "ap@buyer.example"},
		Message:   "hello",
	}
	require.NoError(t, q.Send(ctx, req))

	pending, err := q.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
	assert.Equal(t, domain.TierCritical, pending[0].Candidate.Tier)
}

func TestReminderQueueWithoutRedis(t *testing.T) {
	q := NewReminderQueue(nil, nil)
	assert.Error(t, q.Send(context.Background(), domain.ReminderRequest{ID: "x"}))
}
