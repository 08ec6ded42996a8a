package config

// Redis backs the token-bucket limiters for inbound seat connections and the
// admin API.  It is optional: when neither REDIS_ADDR nor REDIS_HOST is set,
// or the server does not answer a ping, NewRedisClient returns nil and the
// limiters degrade to allowing everything.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAddr resolves the Redis address from the environment.  REDIS_HOST and
// REDIS_PORT together take precedence over REDIS_ADDR.  An empty result means
// Redis is not configured.
func RedisAddr() string {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		return host + ":" + port
	}
	if host != "" {
		return host + ":6379"
	}
	return os.Getenv("REDIS_ADDR")
}

// NewRedisClient instantiates a Redis client using environment variables:
//   REDIS_HOST / REDIS_PORT or REDIS_ADDR – server location
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
// The returned client is nil when Redis is not configured or unreachable.
func NewRedisClient(ctx context.Context) *redis.Client {
	addr := RedisAddr()
	if addr == "" {
		return nil
	}
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	var tlsConf *tls.Config
	if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        dbNum,
		TLSConfig: tlsConf,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
