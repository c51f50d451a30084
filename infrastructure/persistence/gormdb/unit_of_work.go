package gormdb

import (
	"context"
	"fmt"

	"factoryops/domain/shared"
	"factoryops/infrastructure/persistence"
	"factoryops/infrastructure/persistence/retry"

	"gorm.io/gorm"
)

// UnitOfWork runs a function inside one database transaction.
// The transaction travels in the context; repositories pick it up from there.
// A nested Execute joins the outer transaction instead of opening a new one.
type UnitOfWork struct {
	db          *gorm.DB
	retryConfig retry.Config
}

// NewUnitOfWork creates a new UnitOfWork instance
func NewUnitOfWork(db *gorm.DB, retryConfig retry.Config) *UnitOfWork {
	return &UnitOfWork{db: db, retryConfig: retryConfig}
}

// Execute commits when fn returns nil and rolls back otherwise. Transient
// failures (deadlocks, lock timeouts, busy SQLite) re-run the whole function.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if persistence.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	executeOnce := func(ctx context.Context) error {
		return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(shared.MarkInTransaction(persistence.ContextWithTx(ctx, tx)))
		})
	}

	return retry.ExecuteWithRetry(ctx, u.retryConfig, executeOnce)
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Compile-time check that UnitOfWork implements shared.UnitOfWork
var _ shared.UnitOfWork = (*UnitOfWork)(nil)
