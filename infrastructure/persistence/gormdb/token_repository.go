package gormdb

import (
	"context"
	"errors"
	"time"

	"factoryops/domain/intent"
	"factoryops/domain/shared"
	"factoryops/infrastructure/persistence"

	"gorm.io/gorm"
)

// TokenRepository GORM implementation of intent.TokenRepository.
// State transitions are conditional single-row UPDATEs; RowsAffected tells
// the caller whether it won the transition.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *TokenRepository) Create(ctx context.Context, token *intent.PreviewToken) error {
	if err := r.getDB(ctx).Create(tokenToPO(token)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("preview_token", "token value already issued")
		}
		return shared.NewUnavailableError("preview_token", err)
	}
	return nil
}

func (r *TokenRepository) Find(ctx context.Context, value string) (*intent.PreviewToken, error) {
	var po PreviewTokenPO
	if err := r.getDB(ctx).Where("token = ?", value).Take(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("preview_token", value)
		}
		return nil, shared.NewUnavailableError("preview_token", err)
	}
	return po.toDomain(), nil
}

func (r *TokenRepository) Consume(ctx context.Context, value string, at time.Time) (bool, error) {
	at = at.UTC()
	res := r.getDB(ctx).Model(&PreviewTokenPO{}).
		Where("token = ? AND state = ? AND expires_at >= ?", value, string(intent.TokenPending), at).
		Updates(map[string]any{"state": string(intent.TokenConsumed), "consumed_at": at})
	if res.Error != nil {
		return false, shared.NewUnavailableError("preview_token", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *TokenRepository) Expire(ctx context.Context, value string, at time.Time) (bool, error) {
	res := r.getDB(ctx).Model(&PreviewTokenPO{}).
		Where("token = ? AND state = ?", value, string(intent.TokenPending)).
		Update("state", string(intent.TokenExpired))
	if res.Error != nil {
		return false, shared.NewUnavailableError("preview_token", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *TokenRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	before = before.UTC()
	res := r.getDB(ctx).
		Where("expires_at < ? OR (state = ? AND consumed_at < ?)", before, string(intent.TokenConsumed), before).
		Delete(&PreviewTokenPO{})
	if res.Error != nil {
		return 0, shared.NewUnavailableError("preview_token", res.Error)
	}
	return res.RowsAffected, nil
}

var _ intent.TokenRepository = (*TokenRepository)(nil)
