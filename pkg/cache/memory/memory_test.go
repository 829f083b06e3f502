package memory

import (
	"context"
	"testing"
	"time"
)

func TestGetMiss(t *testing.T) {
	c := New(nil)
	if _, ok, err := c.Get(context.Background(), "missing"); ok || err != nil {
		t.Errorf("Get() = ok %v, err %v; want miss", ok, err)
	}
}

func TestExpiry(t *testing.T) {
	now := time.Unix(0, 0)
	c := New(func() time.Time { return now })
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)

	now = now.Add(59 * time.Second)
	if v, ok, _ := c.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Get() before expiry = %q, %v", v, ok)
	}

	now = now.Add(time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() at expiry should miss")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	now := time.Unix(0, 0)
	c := New(func() time.Time { return now })
	ctx := context.Background()

	c.Set(ctx, "k", "v", 0)
	now = now.Add(1000 * time.Hour)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("zero TTL entry expired")
	}
}

func TestOverwrite(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	c.Set(ctx, "k", "a", time.Minute)
	c.Set(ctx, "k", "b", time.Minute)
	if v, _, _ := c.Get(ctx, "k"); v != "b" {
		t.Errorf("Get() = %q, want %q", v, "b")
	}
}
