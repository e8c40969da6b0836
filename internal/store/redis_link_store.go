package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"linkchecker/internal/models"
)

// DefaultPrefix namespaces every key the link store touches.
const DefaultPrefix = "linkcheck:"

// defaultScanSize is how many index members are examined per round trip while filtering by age.
const defaultScanSize = 256

// RedisLinkStore keeps the catalog of links and their check status in Redis.
//
// Layout (under prefix):
//
//	links          ZSET, every member scored 0 so ZRANGEBYLEX walks keys in byte order
//	checked        HASH url -> unix seconds of the last committed check
//	status:<url>   HASH status, redirect, size, location, checked_at
type RedisLinkStore struct {
	client   *redis.Client
	prefix   string
	now      func() time.Time
	scanSize int
}

// NewRedisLinkStore initializes a Redis-backed link store.
func NewRedisLinkStore(addr, prefix string) *RedisLinkStore {
	return NewRedisLinkStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

// NewRedisLinkStoreWithClient wraps an existing client.
func NewRedisLinkStoreWithClient(client *redis.Client, prefix string) *RedisLinkStore {
	return &RedisLinkStore{
		client:   client,
		prefix:   prefix,
		now:      time.Now,
		scanSize: defaultScanSize,
	}
}

// Close closes the Redis client.
func (s *RedisLinkStore) Close() error {
	return s.client.Close()
}

// Ping checks the connection.
func (s *RedisLinkStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisLinkStore) indexKey() string {
	return s.prefix + "links"
}

func (s *RedisLinkStore) checkedKey() string {
	return s.prefix + "checked"
}

func (s *RedisLinkStore) statusKey(url string) string {
	return s.prefix + "status:" + url
}

// AddLinks registers catalog URLs as check candidates. Existing entries are left as they are.
func (s *RedisLinkStore) AddLinks(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(urls))
	for _, u := range urls {
		members = append(members, redis.Z{Score: 0, Member: u})
	}
	return s.client.ZAddNX(ctx, s.indexKey(), members...).Err()
}

// GetLinksForCheck walks the index in key order starting after the cursor and keeps the keys
// whose last check is missing or older than recheckAge.
func (s *RedisLinkStore) GetLinksForCheck(ctx context.Context, after string, limit int, recheckAge time.Duration, prefix string) ([]string, error) {
	min, max := lexRange(after, prefix)
	threshold := s.now().Add(-recheckAge).Unix()
	chunk := s.scanSize
	if limit > chunk {
		chunk = limit
	}

	var out []string
	for {
		members, err := s.client.ZRangeByLex(ctx, s.indexKey(), &redis.ZRangeBy{
			Min:   min,
			Max:   max,
			Count: int64(chunk),
		}).Result()
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return out, nil
		}

		checked, err := s.client.HMGet(ctx, s.checkedKey(), members...).Result()
		if err != nil {
			return nil, err
		}
		for i, m := range members {
			if !due(checked[i], threshold) {
				continue
			}
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}

		if len(members) < chunk {
			return out, nil
		}
		min = "(" + members[len(members)-1]
	}
}

// due reports whether a last-check value from HMGET is absent or strictly older than threshold.
func due(v any, threshold int64) bool {
	raw, ok := v.(string)
	if !ok {
		return true
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true
	}
	return ts < threshold
}

// lexRange builds ZRANGEBYLEX bounds for keys after the cursor and inside prefix.
func lexRange(after, prefix string) (string, string) {
	min, max := "-", "+"
	if after != "" {
		min = "(" + after
	}
	if prefix != "" {
		if after < prefix {
			min = "[" + prefix
		}
		if upper, ok := prefixUpperBound(prefix); ok {
			max = "(" + upper
		}
	}
	return min, max
}

// prefixUpperBound returns the smallest string greater than every string starting with prefix.
func prefixUpperBound(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// OpenBatch starts a MULTI/EXEC pipeline; nothing queued on it is visible before Commit.
func (s *RedisLinkStore) OpenBatch(_ context.Context) (StatusBatch, error) {
	return &redisStatusBatch{store: s, pipe: s.client.TxPipeline()}, nil
}

type redisStatusBatch struct {
	store  *RedisLinkStore
	pipe   redis.Pipeliner
	queued int
	closed bool
}

// UpdateLinkStatus queues an upsert of the result. Optional fields that are absent are removed
// from the stored record.
func (b *redisStatusBatch) UpdateLinkStatus(ctx context.Context, result models.LinkCheckResult) error {
	if b.closed {
		return ErrBatchClosed
	}
	s := b.store
	checkedAt := s.now().Unix()

	fields := map[string]any{
		"status":     int(result.Status),
		"checked_at": checkedAt,
	}
	if result.Redirect != nil {
		fields["redirect"] = *result.Redirect
	}
	if result.Size != nil {
		fields["size"] = *result.Size
	}
	if result.Location != nil {
		fields["location"] = *result.Location
	}

	key := s.statusKey(result.URL)
	b.pipe.Del(ctx, key)
	b.pipe.HSet(ctx, key, fields)
	b.pipe.HSet(ctx, s.checkedKey(), result.URL, checkedAt)
	b.pipe.ZAddNX(ctx, s.indexKey(), redis.Z{Score: 0, Member: result.URL})
	b.queued++
	return nil
}

// Commit executes the queued updates as one MULTI/EXEC transaction. Failures before EXEC
// (connection loss, a rejected command while queueing) leave nothing applied. Redis does not
// roll back when a command fails inside EXEC, e.g. WRONGTYPE on a key of the wrong kind; the
// other commands still apply and Commit reports ErrPartialCommit.
func (b *redisStatusBatch) Commit(ctx context.Context) error {
	if b.closed {
		return ErrBatchClosed
	}
	b.closed = true
	if b.queued == 0 {
		return nil
	}
	cmds, err := b.pipe.Exec(ctx)
	if err != nil && anyApplied(cmds) {
		return fmt.Errorf("%w: %w", ErrPartialCommit, err)
	}
	return err
}

// anyApplied reports whether at least one command in an executed transaction succeeded.
func anyApplied(cmds []redis.Cmder) bool {
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			return true
		}
	}
	return false
}

// Discard drops everything queued. Discarding a committed batch is a no-op.
func (b *redisStatusBatch) Discard() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.pipe.Discard()
	return nil
}

// GetLinkStatus reads the committed status for url.
func (s *RedisLinkStore) GetLinkStatus(ctx context.Context, url string) (models.LinkStatus, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.statusKey(url)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.LinkStatus{}, false, nil
		}
		return models.LinkStatus{}, false, err
	}
	if len(fields) == 0 {
		return models.LinkStatus{}, false, nil
	}
	return decodeStatus(url, fields)
}

func decodeStatus(url string, fields map[string]string) (models.LinkStatus, bool, error) {
	status, err := strconv.Atoi(fields["status"])
	if err != nil {
		return models.LinkStatus{}, false, err
	}
	result := models.LinkCheckResult{URL: url, Status: models.StatusCode(status)}
	if raw, ok := fields["redirect"]; ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return models.LinkStatus{}, false, err
		}
		result.Redirect = &v
	}
	if raw, ok := fields["size"]; ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.LinkStatus{}, false, err
		}
		result.Size = &v
	}
	if raw, ok := fields["location"]; ok {
		loc := raw
		result.Location = &loc
	}

	var checkedAt time.Time
	if raw, ok := fields["checked_at"]; ok {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.LinkStatus{}, false, err
		}
		checkedAt = time.Unix(ts, 0).UTC()
	}

	return models.LinkStatus{
		LinkCheckResult: result,
		StatusName:      result.Status.String(),
		CheckedAt:       checkedAt,
	}, true, nil
}
