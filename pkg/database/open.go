package database

import (
	"fmt"
	"time"

	"video_pipeline_service/pkg/config"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v4/pgxpool"
	"gorm.io/gorm"
)

const defaultRetryCount = 5

func retries(n int) int {
	if n <= 0 {
		return defaultRetryCount
	}
	return n
}

// OpenGorm gorm connection from the yaml pg block
func OpenGorm(c config.DatabaseConfig) (*gorm.DB, error) {
	return NewPGConnection(Connection{
		ConnectStr:    PostgresDSN(c.Host, c.Port, c.User, c.Password, c.Database),
		RetryCount:    retries(c.RetryCount),
		RetryInterval: time.Duration(c.RetryInterval),
	})
}

// OpenPool pgx pool from the yaml pg block
func OpenPool(c config.DatabaseConfig) (*pgxpool.Pool, error) {
	return NewDatabaseConnection(Connection{
		ConnectStr:    PostgresDSN(c.Host, c.Port, c.User, c.Password, c.Database),
		RetryCount:    retries(c.RetryCount),
		RetryInterval: time.Duration(c.RetryInterval),
	})
}

// OpenRedis redis client from the yaml redis block
func OpenRedis(c config.RedisConfig) (*redis.Client, error) {
	return NewRedisClient(RedisConnection{
		Addr:          c.Addr,
		Password:      c.Password,
		DB:            c.RedisDB,
		MasterName:    c.MasterName,
		SentinelAddrs: c.SentinelAddrs,
		RetryCount:    defaultRetryCount,
		RetryInterval: 1,
	})
}

// OpenMinIO object store client from the yaml minio block
func OpenMinIO(c config.MinIOConfig) (*MinIOClient, error) {
	endpoint := c.Host
	if c.Port > 0 {
		endpoint = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	return NewMinIOConnection(MinIOConnection{
		Endpoint:      endpoint,
		User:          c.User,
		Password:      c.Password,
		BucketName:    c.BucketName,
		UseSSL:        c.UseSSL,
		RetryCount:    retries(c.RetryCount),
		RetryInterval: time.Duration(c.RetryInterval),
	})
}
