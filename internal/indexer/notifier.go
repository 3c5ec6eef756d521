// internal/indexer/notifier.go
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/quillcart/priceindex/internal/core/logging"
)

// Notifier receives the set of product ids whose computed index changed,
// after a website's materialization commits. The consumer owns price/page
// cache invalidation; publish failures never fail the website's run.
type Notifier interface {
	PublishPriceChanges(ctx context.Context, websiteID int64, productIDs []int64) error
}

// priceChangeEvent is the published payload.
type priceChangeEvent struct {
	WebsiteID  int64     `json:"website_id"`
	ProductIDs []int64   `json:"product_ids"`
	ChangedAt  time.Time `json:"changed_at"`
}

// RedisNotifier publishes change events to a redis pub/sub channel.
type RedisNotifier struct {
	rdb     *goredis.Client
	channel string
	log     *logging.Logger
}

// NewRedisNotifier connects and pings redis before first use so a
// misconfigured address fails the job at startup, not mid-run.
func NewRedisNotifier(addr, channel string, log *logging.Logger) (*RedisNotifier, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	if channel == "" {
		return nil, fmt.Errorf("redis channel required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisNotifier{
		rdb:     rdb,
		channel: channel,
		log:     log.With("component", "redis_notifier"),
	}, nil
}

// PublishPriceChanges emits one event per website with the changed ids.
// Empty sets are not published.
func (n *RedisNotifier) PublishPriceChanges(ctx context.Context, websiteID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	raw, err := json.Marshal(priceChangeEvent{
		WebsiteID:  websiteID,
		ProductIDs: productIDs,
		ChangedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, raw).Err()
}

// Close releases the redis connection.
func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}

// LogNotifier logs change sets instead of publishing them. Used when no
// redis address is configured and in tests.
type LogNotifier struct {
	log *logging.Logger
}

// NewLogNotifier creates a logging-only notifier.
func NewLogNotifier(log *logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "log_notifier")}
}

// PublishPriceChanges logs the changed product ids.
func (n *LogNotifier) PublishPriceChanges(_ context.Context, websiteID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	n.log.Info("price index changed", "website_id", websiteID, "product_count", len(productIDs), "product_ids", productIDs)
	return nil
}
