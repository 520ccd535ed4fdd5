package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// bumpScript increments one counter and returns the cooldown in ms.
var bumpScript = redis.NewScript(`
local now_ms = tonumber(ARGV[1])
local base_ms = tonumber(ARGV[2])
local multiplier = tonumber(ARGV[3])
local max_ms = tonumber(ARGV[4])
local reset_ms = tonumber(ARGV[5])
local free = tonumber(ARGV[6])

local failures = tonumber(redis.call("HGET", KEYS[1], "failures") or "0")
local last_ms = tonumber(redis.call("HGET", KEYS[1], "last_ms") or "0")
if last_ms == 0 or (now_ms - last_ms) > reset_ms then
  failures = 0
end
failures = failures + 1

local delay = 0
if failures > free then
  delay = math.floor(base_ms * (multiplier ^ (failures - free - 1)))
end
if delay > max_ms then
  delay = max_ms
end

redis.call("HSET", KEYS[1], "failures", tostring(failures), "last_ms", tostring(now_ms), "until_ms", tostring(now_ms + delay))
redis.call("PEXPIRE", KEYS[1], reset_ms + delay + 60000)
return delay
`)

// RedisSignInGuard shares counters between dev server replicas.
type RedisSignInGuard struct {
	client redis.UniversalClient
	prefix string
	policy BackoffPolicy
	now    func() time.Time
}

func NewRedisSignInGuard(client redis.UniversalClient, prefix string, policy BackoffPolicy) *RedisSignInGuard {
	if prefix == "" {
		prefix = "accountkit"
	}
	return &RedisSignInGuard{client: client, prefix: prefix + ":signin_guard", policy: policy.normalize(), now: time.Now}
}

func (g *RedisSignInGuard) Check(ctx context.Context, scope GuardScope, email, ip string) (time.Duration, error) {
	nowMS := g.now().UnixMilli()
	var wait time.Duration
	for _, key := range guardKeys(scope, email, ip) {
		vals, err := g.client.HMGet(ctx, g.key(key), "last_ms", "until_ms").Result()
		if err != nil {
			return 0, err
		}
		if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
			continue
		}
		var lastMS, untilMS int64
		if _, err := fmt.Sscan(fmt.Sprint(vals[0]), &lastMS); err != nil {
			return 0, fmt.Errorf("parse guard state: %w", err)
		}
		if _, err := fmt.Sscan(fmt.Sprint(vals[1]), &untilMS); err != nil {
			return 0, fmt.Errorf("parse guard state: %w", err)
		}
		if nowMS-lastMS > g.policy.ResetWindow.Milliseconds() || untilMS <= nowMS {
			continue
		}
		wait = max(wait, time.Duration(untilMS-nowMS)*time.Millisecond)
	}
	return wait, nil
}

func (g *RedisSignInGuard) RegisterFailure(ctx context.Context, scope GuardScope, email, ip string) (time.Duration, error) {
	nowMS := g.now().UnixMilli()
	var wait time.Duration
	for _, key := range guardKeys(scope, email, ip) {
		delayMS, err := bumpScript.Run(ctx, g.client, []string{g.key(key)},
			nowMS,
			g.policy.BaseDelay.Milliseconds(),
			g.policy.Multiplier,
			g.policy.MaxDelay.Milliseconds(),
			g.policy.ResetWindow.Milliseconds(),
			g.policy.FreeAttempts,
		).Int64()
		if err != nil {
			return 0, err
		}
		wait = max(wait, time.Duration(delayMS)*time.Millisecond)
	}
	return wait, nil
}

func (g *RedisSignInGuard) Reset(ctx context.Context, scope GuardScope, email, _ string) error {
	return g.client.Del(ctx, g.key(emailKey(scope, email))).Err()
}

func (g *RedisSignInGuard) key(k string) string { return g.prefix + ":" + k }
