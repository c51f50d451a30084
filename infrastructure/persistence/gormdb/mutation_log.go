package gormdb

import (
	"context"

	"factoryops/domain/intent"
	"factoryops/domain/shared"
	"factoryops/infrastructure/persistence"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MutationLog Append-only audit table of committed mutation records
type MutationLog struct {
	db *gorm.DB
}

func NewMutationLog(db *gorm.DB) *MutationLog {
	return &MutationLog{db: db}
}

func (l *MutationLog) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return l.db.WithContext(ctx)
}

// Append assigns an ID when the record has none.
func (l *MutationLog) Append(ctx context.Context, rec *intent.MutationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := l.getDB(ctx).Create(mutationToPO(rec)).Error; err != nil {
		return shared.NewUnavailableError("mutation_record", err)
	}
	return nil
}

// ListByEntity returns the newest records first.
func (l *MutationLog) ListByEntity(ctx context.Context, t intent.EntityType, id string, limit int) ([]intent.MutationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var pos []MutationRecordPO
	err := l.getDB(ctx).
		Where("entity_type = ? AND entity_id = ?", string(t), id).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&pos).Error
	if err != nil {
		return nil, shared.NewUnavailableError("mutation_record", err)
	}

	out := make([]intent.MutationRecord, len(pos))
	for i := range pos {
		out[i] = pos[i].toDomain()
	}
	return out, nil
}

var _ intent.MutationLog = (*MutationLog)(nil)
