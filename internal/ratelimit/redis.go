package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisOpTimeout = 2 * time.Second

var redisFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local total = redis.call("INCR", KEYS[4])
redis.call("PEXPIRE", KEYS[4], ARGV[7])
if count >= tonumber(ARGV[2]) then
  redis.call("SET", KEYS[2], ARGV[4], "PX", ARGV[3])
end
if total >= tonumber(ARGV[5]) then
  redis.call("SADD", KEYS[3], ARGV[6])
end
return count
`)

// RedisStore implements Store on Redis so multiple service instances share
// one view of login attempts. Redis errors degrade to allowing the request;
// the password check still gates success.
type RedisStore struct {
	client *redis.Client
	prefix string
	nowFn  func() time.Time
}

// NewRedisStore constructs a RedisStore. A nil nowFn uses the wall clock.
func NewRedisStore(client *redis.Client, prefix string, nowFn func() time.Time) *RedisStore {
	if prefix == "" {
		prefix = "login"
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &RedisStore{client: client, prefix: prefix, nowFn: nowFn}
}

func (s *RedisStore) attemptsKey(id string) string { return s.prefix + ":attempts:" + id }
func (s *RedisStore) totalKey(id string) string    { return s.prefix + ":total:" + id }
func (s *RedisStore) blockKey(id string) string    { return s.prefix + ":block:" + id }
func (s *RedisStore) blacklistKey() string         { return s.prefix + ":blacklist" }

// Check reports the current limiter state for the identifier.
func (s *RedisStore) Check(id string) Result {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	now := s.nowFn()

	listed, errListed := s.client.SIsMember(ctx, s.blacklistKey(), id).Result()
	if errListed != nil {
		log.WithError(errListed).Warn("rate limit: redis check failed, allowing request")
		return Result{Allowed: true, RemainingAttempts: MaxAttempts}
	}
	if listed {
		return Result{Allowed: false, Blacklisted: true}
	}

	if blockedRaw, errBlock := s.client.Get(ctx, s.blockKey(id)).Result(); errBlock == nil {
		if unixMilli, errParse := strconv.ParseInt(blockedRaw, 10, 64); errParse == nil {
			blockedUntil := time.UnixMilli(unixMilli)
			if now.Before(blockedUntil) {
				return Result{Allowed: false, BlockedUntil: &blockedUntil}
			}
		}
	}

	count, errCount := s.client.Get(ctx, s.attemptsKey(id)).Int()
	if errCount != nil && errCount != redis.Nil {
		log.WithError(errCount).Warn("rate limit: redis check failed, allowing request")
		return Result{Allowed: true, RemainingAttempts: MaxAttempts}
	}

	remaining := MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	result := Result{Allowed: remaining > 0, RemainingAttempts: remaining}
	if ttl, errTTL := s.client.PTTL(ctx, s.attemptsKey(id)).Result(); errTTL == nil && ttl > 0 {
		resetTime := now.Add(ttl)
		result.ResetTime = &resetTime
	}
	return result
}

// RecordFailure counts one failed attempt for the identifier.
func (s *RedisStore) RecordFailure(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	now := s.nowFn()

	// The cumulative counter outlives the window so repeated block cycles
	// still escalate to the blacklist; it decays only after a full quiet
	// block-plus-window span, mirroring the in-memory sweep.
	blockedUntil := strconv.FormatInt(now.Add(BlockDuration).UnixMilli(), 10)
	keys := []string{s.attemptsKey(id), s.blockKey(id), s.blacklistKey(), s.totalKey(id)}
	args := []any{
		Window.Milliseconds(),
		MaxAttempts,
		BlockDuration.Milliseconds(),
		blockedUntil,
		BlacklistThreshold,
		id,
		(BlockDuration + Window).Milliseconds(),
	}
	if errEval := redisFailureScript.Run(ctx, s.client, keys, args...).Err(); errEval != nil {
		log.WithError(errEval).Warn("rate limit: redis record failure failed")
	}
}

// Reset deletes the attempt and block state for the identifier.
func (s *RedisStore) Reset(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if errDel := s.client.Del(ctx, s.attemptsKey(id), s.blockKey(id), s.totalKey(id)).Err(); errDel != nil {
		log.WithError(errDel).Warn("rate limit: redis reset failed")
	}
}

// Unblacklist removes the identifier from the permanent blacklist.
func (s *RedisStore) Unblacklist(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if errRem := s.client.SRem(ctx, s.blacklistKey(), id).Err(); errRem != nil {
		log.WithError(errRem).Warn("rate limit: redis unblacklist failed")
		return
	}
	if errDel := s.client.Del(ctx, s.attemptsKey(id), s.blockKey(id), s.totalKey(id)).Err(); errDel != nil {
		log.WithError(errDel).Warn("rate limit: redis unblacklist cleanup failed")
	}
}
