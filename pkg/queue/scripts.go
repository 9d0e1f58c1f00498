package queue

import "github.com/go-redis/redis/v8"

// KEYS dedup, jobs, wait. ARGV id, job json.
// Returns {1, id} when created, {0, existingID} when a live job already holds the video.
var submitScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing then
  return {0, existing}
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('LPUSH', KEYS[3], ARGV[1])
return {1, ARGV[1]}
`)

// KEYS wait, active, jobs, leases. ARGV lease deadline ms.
// Every dequeue bumps the job's lease token; only the holder of the latest token may settle the job.
var dequeueScript = redis.NewScript(`
local id = redis.call('RPOP', KEYS[1])
if not id then
  return false
end
local data = redis.call('HGET', KEYS[3], id)
if not data then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[1], id)
local token = redis.call('HINCRBY', KEYS[4], id, 1)
return {id, data, token}
`)

// KEYS active, leases. ARGV id, token, lease deadline ms.
var extendScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], ARGV[1]) ~= ARGV[2] then
  return 0
end
return redis.call('ZADD', KEYS[1], 'XX', 'CH', ARGV[3], ARGV[1])
`)

// KEYS active, jobs, dedup, leases. ARGV id, token.
var completeScript = redis.NewScript(`
if redis.call('HGET', KEYS[4], ARGV[1]) ~= ARGV[2] then
  return 0
end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HDEL', KEYS[4], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
if redis.call('GET', KEYS[3]) == ARGV[1] then
  redis.call('DEL', KEYS[3])
end
return 1
`)

// KEYS active, jobs, delayed, leases. ARGV id, job json, ready at ms, token.
var retryScript = redis.NewScript(`
if redis.call('HGET', KEYS[4], ARGV[1]) ~= ARGV[4] then
  return 0
end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// KEYS active, jobs, failed, dedup, leases. ARGV id, job json, failed at ms, token.
var failScript = redis.NewScript(`
if redis.call('HGET', KEYS[5], ARGV[1]) ~= ARGV[4] then
  return 0
end
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HDEL', KEYS[5], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
if redis.call('GET', KEYS[4]) == ARGV[1] then
  redis.call('DEL', KEYS[4])
end
return 1
`)

// KEYS source zset, wait. ARGV now ms, limit.
// Moves due members to the consuming end of wait. Used for delayed jobs and expired leases.
var moveDueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('RPUSH', KEYS[2], id)
end
return #ids
`)
