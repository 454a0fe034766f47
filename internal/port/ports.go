// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the report engine
// from the budgeting API client and the delivery channels.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
)

// CategorySource retrieves the budget's category-group tree.
type CategorySource interface {
	GetCategoryGroups(ctx context.Context) ([]domain.CategoryGroup, error)
}

// TransactionSource retrieves raw transactions on or after since.
// Implementations may return older records; the normalizer filters them.
type TransactionSource interface {
	GetTransactions(ctx context.Context, since time.Time) ([]domain.RawTransaction, error)
}

// ReportSender delivers a rendered report through one channel.
type ReportSender interface {
	Name() string
	Send(ctx context.Context, report *domain.Report) (*domain.DeliveryReceipt, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
