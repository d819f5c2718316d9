package redis

import (
	"sort"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
)

// newTestRedisClient starts a miniredis server and a client for it. Both are
// closed when the test ends; closing them earlier is allowed.
func newTestRedisClient(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// cachedFields lists the "{version}:{user}" fields cached for a context.
func cachedFields(t *testing.T, mr *miniredis.Miniredis, contextID string) []string {
	t.Helper()

	key := "balances:" + contextID
	if !mr.Exists(key) {
		return nil
	}
	fields, err := mr.HKeys(key)
	if err != nil {
		t.Fatalf("read fields of %s: %v", key, err)
	}
	sort.Strings(fields)
	return fields
}
