package intent

import (
	"context"
	"testing"
	"time"

	"factoryops/domain/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSweeperRemovesSettledTokens(t *testing.T) {
	f := newFixture(t)
	out := f.dispatcher.Preview(context.Background(), useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, out.Status, out.Message)
	value := out.ConfirmableAction.Token

	s, err := NewTokenSweeper(f.engine, 5*time.Millisecond, time.Hour)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, err := f.store.Tokens().Find(context.Background(), value)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTokenSweeperKeepsPendingTokens(t *testing.T) {
	f := newFixture(t)
	out := f.dispatcher.Preview(context.Background(), useMaterial("MB-2024-001", 200))
	require.Equal(t, intent.StatusPreview, out.Status, out.Message)

	s, err := NewTokenSweeper(f.engine, time.Millisecond, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)

	assert.Equal(t, intent.TokenPending, f.token(t, out.ConfirmableAction.Token).State)
}

func TestNewTokenSweeperRejectsBadSettings(t *testing.T) {
	f := newFixture(t)

	_, err := NewTokenSweeper(nil, time.Minute, time.Hour)
	assert.Error(t, err)
	_, err = NewTokenSweeper(f.engine, 0, time.Hour)
	assert.Error(t, err)
	_, err = NewTokenSweeper(f.engine, time.Minute, -time.Second)
	assert.Error(t, err)
}
