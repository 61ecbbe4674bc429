//go:build integration

package testutil

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// SnapshotDB is the Redis database integration tests use for snapshots.
const SnapshotDB = 9

// RedisAddr returns the address of the test Redis container (IP:port).
// It first checks NETCHANGE_TEST_REDIS_ADDR, then discovers the Docker container IP.
func RedisAddr() string {
	if addr := os.Getenv("NETCHANGE_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}

	ip := redisContainerIP()
	if ip == "" {
		return ""
	}
	return ip + ":6379"
}

func redisContainerIP() string {
	out, err := exec.Command("docker", "inspect",
		"--format", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}",
		"netchange-test-redis").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// SkipIfNoRedis skips the test if the test Redis container is not reachable.
func SkipIfNoRedis(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	if addr == "" {
		t.Skip("test Redis not available: set NETCHANGE_TEST_REDIS_ADDR or start netchange-test-redis")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
}
