package callerid

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// dailyCapTTL keeps per-day counter keys a little past their day so a
// late reader near midnight still sees yesterday's count.
const dailyCapTTL = 26 * time.Hour

var dailyIncrScript = redis.NewScript(`
-- KEYS[1] = per-number daily counter key
-- ARGV[1] = ttl_ms (int)
--
-- Returns the counter value after increment.
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
else
  -- Ensure TTL exists even if key already existed without TTL
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
  end
end
return current
`)

// DailyCapStore mirrors per-number daily call counts into Redis so
// multiple dialer instances share one view. Counter keys are scoped by
// UTC day; they expire on their own, so the nightly reset only has to
// touch the database rows.
type DailyCapStore struct {
	rdb *redis.Client
}

func NewDailyCapStore(rdb *redis.Client) *DailyCapStore {
	return &DailyCapStore{rdb: rdb}
}

func dailyCapKey(numberID string, day time.Time) string {
	return fmt.Sprintf("callerid:daily:%s:%s", day.UTC().Format("2006-01-02"), numberID)
}

// Incr bumps the day's counter for a number and returns the new value.
func (s *DailyCapStore) Incr(ctx context.Context, numberID string, now time.Time) (int, error) {
	if s == nil || s.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	if numberID == "" {
		return 0, fmt.Errorf("number id is required")
	}
	return dailyIncrScript.Run(ctx, s.rdb, []string{dailyCapKey(numberID, now)}, dailyCapTTL.Milliseconds()).Int()
}

// Count reads the day's counter; a missing key means zero.
func (s *DailyCapStore) Count(ctx context.Context, numberID string, now time.Time) (int, error) {
	if s == nil || s.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	n, err := s.rdb.Get(ctx, dailyCapKey(numberID, now)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
