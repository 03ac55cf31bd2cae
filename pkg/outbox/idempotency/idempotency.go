package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/commerce-core/pkg/instance"
)

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Guard claims work items, such as one gateway confirmation, for a TTL. The
// claim value is this process's instance id, so Release cannot drop a claim
// that expired and was re-taken by another replica.
type Guard struct {
	store store
	ttl   time.Duration
	owner string
}

func NewGuard(s store, ttl time.Duration) (*Guard, error) {
	if s == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("idempotency ttl must be positive")
	}
	return &Guard{store: s, ttl: ttl, owner: instance.GetID()}, nil
}

// Mark claims scope/id. claimed is false when an earlier caller holds it.
func (g *Guard) Mark(ctx context.Context, scope, id string) (claimed bool, err error) {
	key, err := g.key(scope, id)
	if err != nil {
		return false, err
	}
	claimed, err = g.store.SetNX(ctx, key, g.owner, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return claimed, nil
}

// Release gives up a claim after the guarded work failed, so a retry can
// run it again.
func (g *Guard) Release(ctx context.Context, scope, id string) error {
	key, err := g.key(scope, id)
	if err != nil {
		return err
	}
	if _, err := g.store.DeleteIfValue(ctx, key, g.owner); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (g *Guard) key(scope, id string) (string, error) {
	scope, id = strings.TrimSpace(scope), strings.TrimSpace(id)
	switch {
	case scope == "":
		return "", errors.New("idempotency scope is required")
	case id == "":
		return "", errors.New("idempotency id is required")
	}
	return g.store.IdempotencyKey(scope, id), nil
}
