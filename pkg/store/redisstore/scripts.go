package redisstore

import "github.com/go-redis/redis/v8"

// KEYS[1] pending zset, KEYS[2] processing zset
// ARGV[1] limit, ARGV[2] worker id, ARGV[3] claim time (ms), ARGV[4] response key prefix
var claimPendingScript = redis.NewScript(`
	local ids = redis.call("ZRANGE", KEYS[1], 0, tonumber(ARGV[1]) - 1)
	local claimed = {}
	for _, id in ipairs(ids) do
		local key = ARGV[4] .. id
		redis.call("ZREM", KEYS[1], id)
		if redis.call("HGET", key, "processing_status") == "pending" and redis.call("HGET", key, "processed") == "0" then
			redis.call("HSET", key, "processing_status", "processing", "claimed_by", ARGV[2], "claimed_at", ARGV[3])
			redis.call("ZADD", KEYS[2], ARGV[3], id)
			table.insert(claimed, id)
		end
	end
	return claimed
`)

// KEYS[1] pending zset, KEYS[2] processing zset, KEYS[3] response hash
// ARGV[1] id, ARGV[2] worker id, ARGV[3] claim time (ms)
// Returns -1 when the response does not exist, 0 when it is not pending.
var claimByIDScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[3]) == 0 then
		return -1
	end
	if redis.call("HGET", KEYS[3], "processing_status") ~= "pending" or redis.call("HGET", KEYS[3], "processed") ~= "0" then
		return 0
	end
	redis.call("ZREM", KEYS[1], ARGV[1])
	redis.call("HSET", KEYS[3], "processing_status", "processing", "claimed_by", ARGV[2], "claimed_at", ARGV[3])
	redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
	return 1
`)

// KEYS[1] pending zset, KEYS[2] processing zset
// ARGV[1] cutoff (ms), ARGV[2] response key prefix
var reclaimStaleScript = redis.NewScript(`
	local ids = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", "(" .. ARGV[1])
	local reclaimed = 0
	for _, id in ipairs(ids) do
		local key = ARGV[2] .. id
		redis.call("ZREM", KEYS[2], id)
		if redis.call("HGET", key, "processing_status") == "processing" then
			redis.call("HSET", key, "processing_status", "pending")
			redis.call("HDEL", key, "claimed_by", "claimed_at")
			redis.call("ZADD", KEYS[1], redis.call("HGET", key, "received_at_ms"), id)
			reclaimed = reclaimed + 1
		end
	end
	return reclaimed
`)

// KEYS[1] pending zset, KEYS[2] processing zset, KEYS[3] response hash
// ARGV[1] id, ARGV[2] worker id, ARGV[3..] field/value pairs to set
// Returns -1 when the response does not exist, 0 when the worker no longer
// holds the claim.
var finishScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[3]) == 0 then
		return -1
	end
	if redis.call("HGET", KEYS[3], "processing_status") ~= "processing" or redis.call("HGET", KEYS[3], "claimed_by") ~= ARGV[2] then
		return 0
	end
	redis.call("ZREM", KEYS[1], ARGV[1])
	redis.call("ZREM", KEYS[2], ARGV[1])
	redis.call("HDEL", KEYS[3], "claimed_by", "claimed_at", "escalation_reason")
	redis.call("HSET", KEYS[3], unpack(ARGV, 3))
	return 1
`)
