package registry

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sirojiddin1dev/carinfopro/internal/config"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
)

// RedisPresence keeps one sorted set per room whose members are instance
// ids scored by their expiry in unix milliseconds. A crashed instance's
// member goes stale on its own and the set itself carries a TTL.
type RedisPresence struct {
	client            *redis.Client
	instanceID        string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{}
	mu                sync.RWMutex
	cancel            context.CancelFunc
	now               func() time.Time
}

// NewRedisPresence uses client without taking ownership of it.
func NewRedisPresence(client *redis.Client, cfg config.PresenceConfig, instanceID string) *RedisPresence {
	return &RedisPresence{
		client:            client,
		instanceID:        instanceID,
		prefix:            cfg.Prefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
		now:               time.Now,
	}
}

func (r *RedisPresence) keyFor(roomID string) string {
	return fmt.Sprintf("%s:room:%s", r.prefix, roomID)
}

// touch renews this instance's member in key and prunes stale members.
func (r *RedisPresence) touch(ctx context.Context, key string) error {
	now := r.now()
	expires := now.Add(r.keyTTL)

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(expires.UnixMilli()), Member: r.instanceID})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(now.UnixMilli(), 10))
	pipe.Expire(ctx, key, r.keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisPresence) Register(ctx context.Context, roomID string) error {
	key := r.keyFor(roomID)

	if err := r.touch(ctx, key); err != nil {
		return fmt.Errorf("failed to register room presence: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldRoomID, roomID).Str(log.FieldInstanceID, r.instanceID).Msg("registered room presence")
	return nil
}

func (r *RedisPresence) Deregister(ctx context.Context, roomID string) error {
	key := r.keyFor(roomID)

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	if err := r.client.ZRem(ctx, key, r.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to deregister room presence: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldRoomID, roomID).Str(log.FieldInstanceID, r.instanceID).Msg("deregistered room presence")
	return nil
}

// Online reports, for each room, whether any instance holds an unexpired
// member. All rooms are read in one pipelined round trip.
func (r *RedisPresence) Online(ctx context.Context, roomIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}

	live := strconv.FormatInt(r.now().UnixMilli(), 10)
	pipe := r.client.Pipeline()
	counts := make([]*redis.IntCmd, len(roomIDs))
	for i, roomID := range roomIDs {
		counts[i] = pipe.ZCount(ctx, r.keyFor(roomID), live, "+inf")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read room presence: %w", err)
	}

	for i, roomID := range roomIDs {
		out[roomID] = counts[i].Val() > 0
	}
	return out, nil
}

func (r *RedisPresence) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("presence heartbeat started")
	return nil
}

func (r *RedisPresence) heartbeatLoop(ctx context.Context) {
	interval := r.heartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisPresence) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	for _, key := range keys {
		if err := r.touch(ctx, key); err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh presence key")
		}
	}
}

func (r *RedisPresence) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Close stops the heartbeat and removes this instance from every room it
// registered. The client stays open.
func (r *RedisPresence) Close() error {
	r.StopHeartbeat()

	r.mu.Lock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.managedKeys = make(map[string]struct{})
	r.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.ZRem(ctx, key, r.instanceID)
	}
	_, err := pipe.Exec(ctx)
	return err
}
