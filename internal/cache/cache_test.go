package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreReserve(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	ok, err := s.Reserve(ctx, "bet:1:abc", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	ok, _ = s.Reserve(ctx, "bet:1:abc", time.Minute)
	if ok {
		t.Fatal("replay within ttl must be refused")
	}
	ok, _ = s.Reserve(ctx, "bet:2:abc", time.Minute)
	if !ok {
		t.Fatal("different key must be accepted")
	}

	now = now.Add(time.Minute)
	ok, _ = s.Reserve(ctx, "bet:1:abc", time.Minute)
	if !ok {
		t.Fatal("key must be reusable after ttl")
	}
}

func TestMemoryStoreRelease(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if ok, _ := s.Reserve(ctx, "bet:1:k", time.Minute); !ok {
		t.Fatal("first reserve refused")
	}
	if err := s.Release(ctx, "bet:1:k"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Reserve(ctx, "bet:1:k", time.Minute); !ok {
		t.Fatal("released key must be reservable again")
	}
	if err := s.Release(ctx, "never-reserved"); err != nil {
		t.Fatalf("releasing an unknown key: %v", err)
	}
}
