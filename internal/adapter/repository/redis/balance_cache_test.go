package redis

import (
	"context"
	"testing"
	"time"

	"github.com/iho/splitledger/internal/domain"
)

func TestBalanceCacheSetAndGet(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewBalanceCache(client, time.Minute)
	ctx := context.Background()

	if err := cache.SetNet(ctx, "ctx-1", 3, "me", domain.Amount(-1250)); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	net, ok, err := cache.GetNet(ctx, "ctx-1", 3, "me")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if net != -1250 {
		t.Fatalf("expected -1250, got %d", net)
	}

	if ttl := mr.TTL("balances:ctx-1"); ttl != time.Minute {
		t.Fatalf("expected hash ttl of one minute, got %s", ttl)
	}
}

func TestBalanceCacheMissOnOtherVersion(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewBalanceCache(client, time.Minute)
	ctx := context.Background()

	if err := cache.SetNet(ctx, "ctx-1", 3, "me", 500); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	tests := []struct {
		name    string
		version int64
		userID  string
	}{
		{name: "newer version", version: 4, userID: "me"},
		{name: "other user", version: 3, userID: "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := cache.GetNet(ctx, "ctx-1", tt.version, tt.userID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok {
				t.Fatalf("expected miss")
			}
		})
	}
}

func TestBalanceCacheInvalidateContext(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer mr.Close()
	defer client.Close()

	cache := NewBalanceCache(client, 0)
	ctx := context.Background()

	_ = cache.SetNet(ctx, "ctx-1", 1, "me", 10)
	_ = cache.SetNet(ctx, "ctx-2", 1, "me", 20)

	if err := cache.InvalidateContext(ctx, "ctx-1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	if mr.Exists("balances:ctx-1") {
		t.Fatalf("expected ctx-1 hash to be removed")
	}
	if _, ok, _ := cache.GetNet(ctx, "ctx-2", 1, "me"); !ok {
		t.Fatalf("expected ctx-2 to stay cached")
	}
}

func TestBalanceCacheReportsConnectionErrors(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	cache := NewBalanceCache(client, time.Minute)
	mr.Close()

	if _, _, err := cache.GetNet(context.Background(), "ctx-1", 1, "me"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}

func TestBalanceCacheFieldsCarryVersionAndUser(t *testing.T) {
	client, mr := newTestRedisClient(t)

	cache := NewBalanceCache(client, time.Minute)
	ctx := context.Background()

	_ = cache.SetNet(ctx, "ctx-9", 2, "me", 100)
	_ = cache.SetNet(ctx, "ctx-9", 2, "bob", -100)
	_ = cache.SetNet(ctx, "ctx-9", 3, "me", 40)

	got := cachedFields(t, mr, "ctx-9")
	want := []string{"2:bob", "2:me", "3:me"}
	if len(got) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected fields %v, got %v", want, got)
		}
	}

	if fields := cachedFields(t, mr, "ctx-unknown"); fields != nil {
		t.Fatalf("expected no fields for an unknown context, got %v", fields)
	}
}
