package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

func errUnknownSite(s sites.Site) error {
	return fmt.Errorf("no crawl profile for site %q", s)
}

// FailureRecord is what lands on the failed-targets list for inspection.
type FailureRecord struct {
	Target Target `json:"target"`
	Reason string `json:"reason"`
	Time   string `json:"time"`
}

// RedisFailureSink appends failed targets to a Redis list so a later run
// (or an operator) can inspect what went wrong.
type RedisFailureSink struct {
	client *redis.Client
	key    string
}

func NewRedisFailureSink(rdb *redis.Client) *RedisFailureSink {
	return &RedisFailureSink{
		client: rdb,
		key:    "crawler:failed_targets",
	}
}

func (f *RedisFailureSink) Record(ctx context.Context, t Target, reason string) error {
	rec := FailureRecord{
		Target: t,
		Reason: reason,
		Time:   time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return f.client.RPush(ctx, f.key, data).Err()
}
