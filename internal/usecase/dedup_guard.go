package usecase

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"go.uber.org/zap"
)

// DedupGuard answers whether a ledger key was already applied. It is an
// advisory pre-check: the unique index on subscription_records.transaction_id
// is what actually prevents a second row.
type DedupGuard struct {
	repo   repository.SubscriptionRepository
	recent *lru.Cache[string, struct{}]
	logger *zap.Logger
}

// NewDedupGuard creates a guard remembering up to size recently applied
// keys in memory.
func NewDedupGuard(repo repository.SubscriptionRepository, size int, logger *zap.Logger) (*DedupGuard, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}
	return &DedupGuard{
		repo:   repo,
		recent: cache,
		logger: logger,
	}, nil
}

// Seen reports whether key already has a ledger row.
func (g *DedupGuard) Seen(ctx context.Context, key string) (bool, error) {
	if g.recent.Contains(key) {
		g.logger.Debug("Duplicate transaction found in cache", zap.String("transaction_id", key))
		return true, nil
	}

	exists, err := g.repo.ExistsByTransactionID(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		g.recent.Add(key, struct{}{})
	}
	return exists, nil
}

// Remember records a key that was just applied.
func (g *DedupGuard) Remember(key string) {
	g.recent.Add(key, struct{}{})
}
