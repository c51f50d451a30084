package gormdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"factoryops/domain/factory"
	"factoryops/domain/intent"
	"factoryops/domain/shared"
	"factoryops/infrastructure/persistence/mocks"
	"factoryops/infrastructure/persistence/retry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &Config{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "factoryops.db"),
		LogLevel:   "silent",
	}
	db, err := cfg.Connect()
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seededRepositories(t *testing.T, db *gorm.DB) factory.Repositories {
	t.Helper()
	repos := NewRepositories(db)
	err := NewUnitOfWork(db, retry.DefaultConfig).Execute(context.Background(), func(ctx context.Context) error {
		return mocks.NewDemoData(now).Load(ctx, repos)
	})
	require.NoError(t, err)
	return repos
}

func TestRepositoriesLookups(t *testing.T) {
	db := openTestDB(t)
	repos := seededRepositories(t, db)
	ctx := context.Background()

	m, err := repos.MaterialBatches.FindByBusinessKey(ctx, "MB-2024-002")
	require.NoError(t, err)
	assert.Equal(t, "mb-002", m.ID)
	assert.True(t, m.ReservedQuantity.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, factory.MaterialAvailable, m.Status)

	p, err := repos.ProductTypes.FindByID(ctx, "pt-001")
	require.NoError(t, err)
	assert.True(t, p.StandardPrice.Equal(decimal.RequireFromString("18.50")))

	_, err = repos.MaterialBatches.FindByBusinessKey(ctx, "MB-1999-000")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	n, err := repos.ProductionBatches.CountByProductType(ctx, "pt-001")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repos.ProductionPlans.CountActiveByProductType(ctx, "pt-001")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSaveKeepsDecimalPrecision(t *testing.T) {
	db := openTestDB(t)
	repos := seededRepositories(t, db)
	ctx := context.Background()

	plan, err := repos.ProductionPlans.FindByID(ctx, "pp-001")
	require.NoError(t, err)
	plan.PlannedQuantity = decimal.RequireFromString("123.45")
	require.NoError(t, repos.ProductionPlans.Save(ctx, plan))

	plan, err = repos.ProductionPlans.FindByID(ctx, "pp-001")
	require.NoError(t, err)
	assert.Equal(t, "123.45", plan.PlannedQuantity.String())
}

func TestUnitOfWorkRollsBack(t *testing.T) {
	db := openTestDB(t)
	repos := seededRepositories(t, db)
	log := NewMutationLog(db)
	boom := errors.New("audit write failed")

	err := NewUnitOfWork(db, retry.DefaultConfig).Execute(context.Background(), func(ctx context.Context) error {
		m, err := repos.MaterialBatches.FindByID(ctx, "mb-001")
		if err != nil {
			return err
		}
		m.UsedQuantity = decimal.NewFromInt(200)
		if err := repos.MaterialBatches.Save(ctx, m); err != nil {
			return err
		}
		rec := intent.NewMutationRecord(m, intent.ActionUsed, nil, nil, nil, "op-7", now)
		if err := log.Append(ctx, &rec); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	m, err := repos.MaterialBatches.FindByID(context.Background(), "mb-001")
	require.NoError(t, err)
	assert.True(t, m.UsedQuantity.IsZero())

	recs, err := log.ListByEntity(context.Background(), intent.EntityMaterialBatch, "mb-001", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func pendingToken(value string, expires time.Time) *intent.PreviewToken {
	return &intent.PreviewToken{
		Value:      value,
		Owner:      "op-7",
		Target:     intent.Reference{Type: "MATERIAL_BATCH", BusinessKey: "MB-2024-001"},
		EntityType: intent.EntityMaterialBatch,
		EntityID:   "mb-001",
		Category:   intent.CategoryMaterial,
		IntentCode: "MATERIAL_BATCH_USE",
		Action:     intent.ActionUsed,
		Payload:    map[string]any{"quantity": "200"},
		Proposed:   intent.FieldUpdates{{Field: "usedQuantity", Value: "200"}},
		State:      intent.TokenPending,
		CreatedAt:  now,
		ExpiresAt:  expires,
	}
}

func TestTokenConsumeIsSingleShot(t *testing.T) {
	db := openTestDB(t)
	tokens := NewTokenRepository(db)
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, pendingToken("tok-1", now.Add(5*time.Minute))))
	assert.ErrorIs(t, tokens.Create(ctx, pendingToken("tok-1", now.Add(5*time.Minute))), shared.ErrConflict)

	tok, err := tokens.Find(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "op-7", tok.Owner)
	assert.Equal(t, "MB-2024-001", tok.Target.BusinessKey)
	assert.Equal(t, []string{"usedQuantity"}, tok.Proposed.Fields())

	won, err := tokens.Consume(ctx, "tok-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, won)

	won, err = tokens.Consume(ctx, "tok-1", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, won)

	tok, err = tokens.Find(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, intent.TokenConsumed, tok.State)
	require.NotNil(t, tok.ConsumedAt)

	_, err = tokens.Find(ctx, "tok-404")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTokenExpiryAndPrune(t *testing.T) {
	db := openTestDB(t)
	tokens := NewTokenRepository(db)
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, pendingToken("late", now.Add(time.Minute))))
	require.NoError(t, tokens.Create(ctx, pendingToken("fresh", now.Add(time.Hour))))

	won, err := tokens.Consume(ctx, "late", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, won)

	won, err = tokens.Expire(ctx, "late", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, won)
	won, err = tokens.Expire(ctx, "late", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, won)

	n, err := tokens.Prune(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = tokens.Find(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMutationLogNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repos := seededRepositories(t, db)
	log := NewMutationLog(db)
	ctx := context.Background()

	m, err := repos.MaterialBatches.FindByID(ctx, "mb-001")
	require.NoError(t, err)
	for i, action := range []intent.Action{intent.ActionReserved, intent.ActionUsed, intent.ActionReleased} {
		rec := intent.NewMutationRecord(m, action,
			map[string]any{"reservedQuantity": "0"}, map[string]any{"reservedQuantity": "10"},
			nil, "op-7", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, log.Append(ctx, &rec))
		assert.NotEmpty(t, rec.ID)
	}

	recs, err := log.ListByEntity(ctx, intent.EntityMaterialBatch, "mb-001", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, intent.ActionReleased, recs[0].Action)
	assert.Equal(t, intent.ActionUsed, recs[1].Action)
	assert.Equal(t, "10", recs[0].Changes.NewValues["reservedQuantity"])
	assert.Equal(t, "Pork shoulder MB-2024-001", recs[0].EntityName)
}

func TestUnitOfWorkMarksContext(t *testing.T) {
	db := openTestDB(t)
	uow := NewUnitOfWork(db, retry.DefaultConfig)
	ctx := context.Background()
	assert.False(t, shared.InTransaction(ctx))

	err := uow.Execute(ctx, func(ctx context.Context) error {
		assert.True(t, shared.InTransaction(ctx))
		return uow.Execute(ctx, func(ctx context.Context) error {
			assert.True(t, shared.InTransaction(ctx))
			return nil
		})
	})
	require.NoError(t, err)
}
