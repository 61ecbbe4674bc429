//go:build integration

package testutil

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
)

// FlushDB flushes a specific Redis database.
func FlushDB(t *testing.T, addr string, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing DB %d: %v", db, err)
	}
}

// ReadEntry reads a hash entry from a specific Redis DB.
func ReadEntry(t *testing.T, addr string, db int, table, key string) map[string]string {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	redisKey := table + "|" + key
	vals, err := client.HGetAll(context.Background(), redisKey).Result()
	if err != nil {
		t.Fatalf("reading %s: %v", redisKey, err)
	}
	return vals
}

// EntryExists checks if a key exists in a specific Redis DB.
func EntryExists(t *testing.T, addr string, db int, table, key string) bool {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	redisKey := table + "|" + key
	n, err := client.Exists(context.Background(), redisKey).Result()
	if err != nil {
		t.Fatalf("checking existence of %s: %v", redisKey, err)
	}
	return n > 0
}
