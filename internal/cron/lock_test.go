package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	ctx := context.Background()
	first, err := NewRedisLock(store, LockKey, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(store, LockKey, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second acquire should fail, ok=%v err=%v", ok, err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, held := store.values[LockKey]; !held {
		t.Fatalf("non-owner release dropped the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after release ok=%v err=%v", ok, err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, LockKey, time.Second); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := NewRedisLock(&memoryStore{}, "", time.Second); err == nil {
		t.Fatal("expected error without key")
	}
}
