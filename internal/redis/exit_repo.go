package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edirooss/scriptd/internal/host"
	"github.com/edirooss/scriptd/pkg/jsonx"
)

var (
	ErrExitNotFound = errors.New("exit record not found")

	exitKeyPrefix = "scriptd:exit:"
	exitIndexKey  = "scriptd:exits" // LIST of record ids, newest first
)

const (
	// DefaultExitHistory bounds the index list.
	DefaultExitHistory = 1000
	// DefaultExitTTL is how long a single record survives.
	DefaultExitTTL = 24 * time.Hour
)

func exitKey(id string) string { return exitKeyPrefix + id }

var _ host.Recorder = (*ExitRepository)(nil)

// ExitRepository persists process exit records.
//
// Layout:
//   - scriptd:exit:<uuid>  JSON record, expires after ttl
//   - scriptd:exits        index of ids, newest first, trimmed to history
type ExitRepository struct {
	client  *Client
	log     *zap.Logger
	history int64
	ttl     time.Duration
}

// NewExitRepository returns a repository; non-positive history/ttl select the defaults.
func NewExitRepository(log *zap.Logger, client *Client, history int64, ttl time.Duration) *ExitRepository {
	if history <= 0 {
		history = DefaultExitHistory
	}
	if ttl <= 0 {
		ttl = DefaultExitTTL
	}
	return &ExitRepository{
		client:  client,
		log:     log.Named("exit_repo"),
		history: history,
		ttl:     ttl,
	}
}

// Record stores rec and pushes it onto the index.
func (r *ExitRepository) Record(ctx context.Context, rec host.ExitRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	id := rec.ID.String()
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, exitKey(id), payload, r.ttl)
	pipe.LPush(ctx, exitIndexKey, id)
	pipe.LTrim(ctx, exitIndexKey, 0, r.history-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Get fetches one record. Returns ErrExitNotFound if it is missing or expired.
func (r *ExitRepository) Get(ctx context.Context, id uuid.UUID) (*host.ExitRecord, error) {
	raw, err := r.client.Get(ctx, exitKey(id.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrExitNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	var rec host.ExitRecord
	if err := jsonx.ParseJSONObject(bytes.NewReader(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &rec, nil
}

// Recent returns up to n records, newest first. Expired entries are skipped.
func (r *ExitRepository) Recent(ctx context.Context, n int64) ([]host.ExitRecord, error) {
	if n <= 0 {
		return []host.ExitRecord{}, nil
	}

	ids, err := r.client.LRange(ctx, exitIndexKey, 0, n-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	out := make([]host.ExitRecord, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = exitKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	for i, v := range vals {
		if v == nil {
			continue // expired
		}
		s, ok := v.(string)
		if !ok {
			r.log.Warn("unexpected redis type for exit record", zap.String("key", keys[i]), zap.Any("type", v))
			continue
		}
		var rec host.ExitRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			r.log.Warn("bad exit record json", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the length of the index.
func (r *ExitRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, exitIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("llen: %w", err)
	}
	return n, nil
}
