// Package lock coordinates concurrent refund activity through Redis: a
// per-order mutex narrowing the validate/commit race, and a request-key
// registry that short-circuits fast replays of the same refund request.
package lock

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client, Logger: log.Default()}
}

// lockTTL returns the refund lock duration, overridable via environment.
func (r *Redis) lockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("REFUND_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}
	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid REFUND_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 30 seconds")
		return defaultTTL
	}
	return time.Duration(ttlSec) * time.Second
}

// LockOrder takes the refund mutex for an order. The token identifies the
// holder so an expired lock cannot be released by a stale caller.
func (r *Redis) LockOrder(orderID, token string) (bool, error) {
	key := "refund_lock:" + orderID
	return r.Client.SetNX(context.Background(), key, token, r.lockTTL()).Result()
}

func (r *Redis) UnlockOrder(orderID, token string) error {
	ctx := context.Background()
	key := fmt.Sprintf("refund_lock:%s", orderID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// RegisterRequestKey records a refund request key, returning false when the
// key was already seen recently. The durable replay check is the unique key
// on the refund row; this is only the fast path.
func (r *Redis) RegisterRequestKey(requestKey string) (bool, error) {
	key := "refund_request:" + requestKey
	return r.Client.SetNX(context.Background(), key, "1", 24*time.Hour).Result()
}

// UnregisterRequestKey clears a registered key after a failed refund so the
// caller can retry with the same key.
func (r *Redis) UnregisterRequestKey(requestKey string) error {
	_, err := r.Client.Del(context.Background(), "refund_request:"+requestKey).Result()
	return err
}
