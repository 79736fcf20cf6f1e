// internal/infra/subscription/gate.go
package subscription

import (
	"context"
	"database/sql"
	"time"

	domain "estate_lifecycle_engine/internal/domain/subscription"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const cacheTTL = 60 * time.Second

// CachedGate answers subscription lookups from Redis when possible and
// falls back to Postgres. The gate is consulted once per user per scan
// cycle, so a short TTL keeps enforcement decisions near-fresh while
// sparing the billing tables from scan traffic. Cache failures degrade to
// the database; they are logged, never surfaced.
type CachedGate struct {
	db     *sql.DB
	cache  *redis.Client // May be nil; the gate then always hits Postgres
	logger *logrus.Logger
}

func NewCachedGate(db *sql.DB, cache *redis.Client, logger *logrus.Logger) *CachedGate {
	return &CachedGate{db: db, cache: cache, logger: logger}
}

func cacheKey(userID string) string {
	return "lifecycle:subscription:" + userID
}

// IsActive reports whether the user holds an active or trialing
// subscription, i.e. whether enforcement is short-circuited for them.
func (g *CachedGate) IsActive(ctx context.Context, userID string) (bool, error) {
	if g.cache != nil {
		cached, err := g.cache.Get(ctx, cacheKey(userID)).Result()
		if err == nil {
			return !domain.Status(cached).Enforced(), nil
		}
		if err != redis.Nil {
			g.logger.Warnf("Subscription cache read failed for user %s: %v", userID, err)
		}
	}

	var status domain.Status
	err := g.db.QueryRowContext(ctx,
		`SELECT status FROM subscriptions WHERE user_id = $1`, userID).Scan(&status)
	if err == sql.ErrNoRows {
		status = domain.StatusNone
	} else if err != nil {
		return false, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, cacheKey(userID), string(status), cacheTTL).Err(); err != nil {
			g.logger.Warnf("Subscription cache write failed for user %s: %v", userID, err)
		}
	}

	return !status.Enforced(), nil
}

// NewRedisClient instantiates the cache client and pings it with a short
// timeout. Returns nil on failure so the gate degrades to Postgres-only.
func NewRedisClient(addr, password string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}
