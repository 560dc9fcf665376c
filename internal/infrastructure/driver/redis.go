package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient .
type RedisClient struct {
	conn *redis.Client
}

var _ KeyValueDB = &RedisClient{}

// NewRedisClient create a redis client
func NewRedisClient(host string, port int, password string) *RedisClient {
	return NewRedisClientAddr(fmt.Sprintf("%s:%d", host, port), password)
}

// NewRedisClientAddr create a redis client from a host:port address
func NewRedisClientAddr(addr string, password string) *RedisClient {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &RedisClient{
		conn: conn,
	}
}

// SetEX implement KeyValueDB, zero expiration keeps the key forever
func (rdb *RedisClient) SetEX(ctx context.Context, key string, value string, expiration time.Duration) error {
	return rdb.conn.Set(ctx, key, value, expiration).Err()
}

// Get implement KeyValueDB
func (rdb *RedisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := rdb.conn.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	return v, err
}

// Del implement KeyValueDB
func (rdb *RedisClient) Del(ctx context.Context, key string) error {
	return rdb.conn.Del(ctx, key).Err()
}

// SAdd implement KeyValueDB
func (rdb *RedisClient) SAdd(ctx context.Context, key string, member string) error {
	return rdb.conn.SAdd(ctx, key, member).Err()
}

// SRem implement KeyValueDB
func (rdb *RedisClient) SRem(ctx context.Context, key string, member string) error {
	return rdb.conn.SRem(ctx, key, member).Err()
}

// SIsMember implement KeyValueDB
func (rdb *RedisClient) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	return rdb.conn.SIsMember(ctx, key, member).Result()
}

// SMembers implement KeyValueDB
func (rdb *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return rdb.conn.SMembers(ctx, key).Result()
}

// Ping implement KeyValueDB
func (rdb *RedisClient) Ping(ctx context.Context) error {
	return rdb.conn.Ping(ctx).Err()
}

// Close implement KeyValueDB
func (rdb *RedisClient) Close() error {
	return rdb.conn.Close()
}
