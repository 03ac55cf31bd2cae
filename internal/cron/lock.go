package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/instance"
)

// Locker hands out per-job leases so only one worker runs a job at a time.
// Acquire returns a nil Lease when another worker holds it.
type Locker interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLocker implements Locker with SETNX plus TTL. The owner value carries
// the instance id so a stuck lease can be traced to its worker.
type RedisLocker struct {
	store leaseStore
	key   func(job string) string
}

func NewRedisLocker(store leaseStore, key func(job string) string) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis store required for cron leases")
	}
	if key == nil {
		return nil, errors.New("lease key builder required")
	}
	return &RedisLocker{store: store, key: key}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, job string, ttl time.Duration) (Lease, error) {
	key := l.key(job)
	owner := instance.GetID() + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLease{store: l.store, key: key, owner: owner}, nil
}

type redisLease struct {
	store leaseStore
	key   string
	owner string
}

// Release is a no-op once the lease expired and another worker took it.
func (l *redisLease) Release(ctx context.Context) error {
	if _, err := l.store.DeleteIfValue(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
