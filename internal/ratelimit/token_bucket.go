package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  local refill = (delta / 1000) * rate
  tokens = math.min(burst, tokens + refill)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

// TokenBucket is a Redis-backed limiter refilling at rate tokens per second
// up to burst. State lives in Redis so multiple replicas share the budget.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
}

func NewTokenBucket(client *redis.Client, rate float64, burst int) (*TokenBucket, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	if rate <= 0 {
		return nil, errors.New("ratelimit: rate must be positive")
	}
	if burst <= 0 {
		return nil, errors.New("ratelimit: burst must be positive")
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		rate:   rate,
		burst:  burst,
	}, nil
}

func (t *TokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("ratelimit: key is empty")
	}

	ttl := bucketTTL(t.rate, t.burst)
	res, err := t.script.Run(
		ctx,
		t.client,
		[]string{key},
		t.rate,
		t.burst,
		int64(ttl/time.Millisecond),
	).Slice()
	if err != nil {
		return false, err
	}
	if len(res) < 1 {
		return false, errors.New("ratelimit: unexpected script response")
	}

	allowed, _ := res[0].(int64)
	return allowed == 1, nil
}

// bucketTTL keeps idle keys around long enough to refill twice over.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
