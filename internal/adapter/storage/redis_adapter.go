package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vhoang/storefront/internal/port"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// reserveStockScript atomically checks and decrements a stock counter.
// Returns -1 on success, -2 when the key is absent (product not tracked),
// and the current stock when it is insufficient.
var reserveStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -2
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return -1
end

return current
`)

// restoreStockScript increments only counters that exist, so a restore for an
// untracked product does not materialize a bogus counter.
var restoreStockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
	return redis.call('INCRBY', key, ARGV[1])
end
return -1
`)

// RedisAdapter is the cache-side stock gate: a fast fail for checkouts that
// cannot possibly succeed, ahead of the authoritative database transaction.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func stockKey(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}

func (r *RedisAdapter) ReserveStock(ctx context.Context, productID int64, quantity int) (port.StockGateResult, int, error) {
	result, err := reserveStockScript.Run(ctx, r.client, []string{stockKey(productID)}, quantity).Int()
	if err != nil {
		return port.GateUntracked, 0, err
	}

	switch result {
	case -1:
		return port.GateReserved, 0, nil
	case -2:
		return port.GateUntracked, 0, nil
	default:
		return port.GateInsufficient, result, nil
	}
}

func (r *RedisAdapter) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	return restoreStockScript.Run(ctx, r.client, []string{stockKey(productID)}, quantity).Err()
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID int64, quantity int) error {
	return r.client.Set(ctx, stockKey(productID), quantity, 0).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}
