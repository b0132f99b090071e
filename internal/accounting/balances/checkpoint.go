package balances

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CheckpointStore caches month-end balances in Redis so BalanceAt does
// not rescan history on every call. Entries expire on their own; a
// posting into a past month invalidates affected checkpoints eagerly.
type CheckpointStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewCheckpointStore constructs the store. ttl zero defaults to 24h.
func NewCheckpointStore(client *redis.Client, ttl time.Duration) *CheckpointStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CheckpointStore{client: client, ttl: ttl, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *CheckpointStore) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func checkpointKey(accountID int64, monthEnd time.Time) string {
	return fmt.Sprintf("ledger:cp:%d:%s", accountID, monthEnd.Format("200601"))
}

// Get returns the cached balance for the account at the given month end.
func (s *CheckpointStore) Get(ctx context.Context, accountID int64, monthEnd time.Time) (float64, bool, error) {
	raw, err := s.client.Get(ctx, checkpointKey(accountID, monthEnd)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, nil
	}
	return v, true, nil
}

// Set stores the balance for the account at the given month end.
func (s *CheckpointStore) Set(ctx context.Context, accountID int64, monthEnd time.Time, balance float64) error {
	return s.client.Set(ctx, checkpointKey(accountID, monthEnd), strconv.FormatFloat(balance, 'f', 2, 64), s.ttl).Err()
}

// InvalidateFrom drops every checkpoint at or after the month containing
// from, for each listed account. Postings only ever invalidate months
// from their entry date forward.
func (s *CheckpointStore) InvalidateFrom(ctx context.Context, accountIDs []int64, from time.Time) error {
	if s == nil || s.client == nil || len(accountIDs) == 0 {
		return nil
	}
	firstEnd := monthEndOf(from)
	horizon := monthEndOf(s.now().AddDate(0, 1, 0))
	var keys []string
	for cursor := firstEnd; !cursor.After(horizon); cursor = monthEndOf(cursor.AddDate(0, 0, 1)) {
		for _, id := range accountIDs {
			keys = append(keys, checkpointKey(id, cursor))
		}
	}
	return s.client.Del(ctx, keys...).Err()
}

func monthEndOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, -1)
}
