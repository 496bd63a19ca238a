package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

var (
	client    *redis.Client
	available bool
	ctx       = context.Background()
)

// SetupCache initializes the connection to the Redis compatible cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		available = false
		log.Warnf("[Cache] Could not connect to cache at %s:%s: %v", host, port, err)
		return
	}
	available = true
	log.Infof("[Cache] Successfully connected to cache: %s", pong)
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// IsAvailable reports whether the last connection attempt succeeded.
func IsAvailable() bool {
	return client != nil && available
}

// HostPort splits the client address for consumers that need discrete settings
// (gofiber storage drivers).
func HostPort() (string, int, error) {
	addr := GetClient().Options().Addr
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid cache address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid cache port %q: %w", p, err)
	}
	return h, port, nil
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// Store exposes the package helpers as a value for consumers that take
// a cache dependency.
type Store struct{}

func (Store) Get(key string) (string, error) { return Get(key) }

func (Store) Set(key string, value interface{}, expiration time.Duration) error {
	return Set(key, value, expiration)
}
