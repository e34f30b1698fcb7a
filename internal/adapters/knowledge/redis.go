package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// RedisConfig holds connection settings for the Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key namespace, default "ytc"

	// RecheckInterval bounds how often a degraded store retries the connection.
	RecheckInterval time.Duration
}

// RedisStore keeps patterns in sorted sets keyed by setup type and trend,
// scored by win rate. When Redis is unreachable it runs degraded and every
// Query fails with ports.ErrKnowledgeUnavailable.
type RedisStore struct {
	client *redis.Client
	cfg    RedisConfig
	logger ports.Logger

	mu        sync.RWMutex
	healthy   bool
	lastCheck time.Time
}

var _ ports.KnowledgeLookup = (*RedisStore)(nil)

// NewRedisStore connects to Redis. A failed ping does not return an error;
// the store starts degraded and recovers on a later query.
func NewRedisStore(cfg RedisConfig, logger ports.Logger) (*RedisStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for knowledge redis store")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required: %w", ports.ErrConfigurationError)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ytc"
	}
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = 30 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   2,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	s := &RedisStore{client: client, cfg: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.ping(ctx)
	return s, nil
}

// Key returns the sorted-set key for a setup type and trend.
func (s *RedisStore) Key(setupType domain.SetupType, trend domain.TrendDirection) string {
	return fmt.Sprintf("%s:patterns:%s:%s", s.cfg.Prefix, setupType, trend)
}

// IsHealthy reports whether the last Redis interaction succeeded.
func (s *RedisStore) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// Query returns the TopK patterns with the highest win rate for the type and trend.
func (s *RedisStore) Query(ctx context.Context, q ports.PatternQuery) ([]domain.ReferencePattern, error) {
	if !s.available(ctx) {
		return nil, fmt.Errorf("knowledge query failed: %w", ports.ErrKnowledgeUnavailable)
	}
	topK := q.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	members, err := s.client.ZRevRange(ctx, s.Key(q.SetupType, q.Trend), 0, int64(topK-1)).Result()
	if err != nil {
		s.markUnhealthy(ctx, err)
		return nil, fmt.Errorf("knowledge query failed: %w: %w", ports.ErrKnowledgeUnavailable, err)
	}

	patterns := make([]domain.ReferencePattern, 0, len(members))
	for _, m := range members {
		var p domain.ReferencePattern
		if err := json.Unmarshal([]byte(m), &p); err != nil {
			s.logger.Warn(ctx, "Skipping malformed knowledge pattern", map[string]interface{}{"error": err.Error()})
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// Seed replaces the sorted sets touched by patterns in one transaction.
func (s *RedisStore) Seed(ctx context.Context, patterns []domain.ReferencePattern) (int, error) {
	grouped := make(map[string][]redis.Z)
	for _, p := range patterns {
		data, err := json.Marshal(p)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal pattern %s: %w", p.ID, err)
		}
		key := s.Key(p.SetupType, p.Trend)
		grouped[key] = append(grouped[key], redis.Z{Score: p.WinRate, Member: string(data)})
	}

	pipe := s.client.TxPipeline()
	for key, members := range grouped {
		pipe.Del(ctx, key)
		pipe.ZAdd(ctx, key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.markUnhealthy(ctx, err)
		return 0, fmt.Errorf("knowledge seed failed: %w: %w", ports.ErrKnowledgeUnavailable, err)
	}
	s.markHealthy()
	s.logger.Info(ctx, "Knowledge patterns seeded", map[string]interface{}{"patterns": len(patterns), "keys": len(grouped)})
	return len(grouped), nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// available re-pings a degraded store at most once per RecheckInterval.
func (s *RedisStore) available(ctx context.Context) bool {
	s.mu.RLock()
	healthy, since := s.healthy, time.Since(s.lastCheck)
	s.mu.RUnlock()
	if healthy {
		return true
	}
	if since < s.cfg.RecheckInterval {
		return false
	}
	return s.ping(ctx)
}

func (s *RedisStore) ping(ctx context.Context) bool {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.markUnhealthy(ctx, err)
		return false
	}
	s.markHealthy()
	s.logger.Info(ctx, "Knowledge store connected", map[string]interface{}{"addr": s.cfg.Addr})
	return true
}

func (s *RedisStore) markHealthy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = true
	s.lastCheck = time.Now()
}

func (s *RedisStore) markUnhealthy(ctx context.Context, err error) {
	s.mu.Lock()
	announce := s.healthy || s.lastCheck.IsZero()
	s.healthy = false
	s.lastCheck = time.Now()
	s.mu.Unlock()
	if announce {
		s.logger.Warn(ctx, "Knowledge store degraded", map[string]interface{}{"addr": s.cfg.Addr, "error": err.Error()})
	}
}
