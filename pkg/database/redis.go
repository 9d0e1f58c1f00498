package database

import (
	"context"
	"fmt"
	"time"

	"video_pipeline_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewRedisClient init redis connection, sentinel failover when MasterName is set
func NewRedisClient(d RedisConnection) (*redis.Client, error) {
	var rdb *redis.Client
	if d.MasterName != "" && len(d.SentinelAddrs) > 0 {
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    d.MasterName,    // 哨兵主节点名称
			SentinelAddrs: d.SentinelAddrs, // 哨兵地址列表
			Password:      d.Password,
			DB:            d.DB,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     d.Addr,
			Password: d.Password,
			DB:       d.DB,
		})
	}

	retries := d.RetryCount
	if retries < 1 {
		retries = 1
	}

	var err error
	for i := 1; i <= retries; i++ {
		// 测试连接
		if err = rdb.Ping(context.Background()).Err(); err == nil {
			return rdb, nil
		}
		logger.Log.Warn("redis ping failed, retrying...", zap.Int("attempt", i), zap.Error(err))
		if i < retries {
			time.Sleep(d.RetryInterval * time.Second)
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("failed to connect to redis: %w", err)
}
