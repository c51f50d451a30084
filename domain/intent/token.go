package intent

import (
	"context"
	"time"
)

// TokenState Lifecycle state of a preview token
type TokenState string

const (
	TokenPending  TokenState = "PENDING"
	TokenConsumed TokenState = "CONSUMED"
	TokenExpired  TokenState = "EXPIRED"
)

// IsTerminal reports whether the state accepts no further transitions.
func (s TokenState) IsTerminal() bool {
	return s == TokenConsumed || s == TokenExpired
}

// DefaultTokenTTL is the confirmation window when none is configured.
const DefaultTokenTTL = 300 * time.Second

// PreviewToken Short-lived single-use credential for one pending mutation
type PreviewToken struct {
	Value      string
	Owner      string
	Target     Reference
	EntityType EntityType
	EntityID   string
	Category   Category
	IntentCode string
	Operation  string
	Action     Action

	// Payload is the intent context as received, kept for replaying the
	// handler on confirm.
	Payload map[string]any
	// Snapshot holds the entity's values at preview time. Display only.
	Snapshot map[string]any
	Proposed FieldUpdates

	CreatedAt  time.Time
	ExpiresAt  time.Time
	State      TokenState
	ConsumedAt *time.Time

	// Ephemeral marks a token that was never persisted and cannot be confirmed.
	Ephemeral bool
}

// ExpiredAt reports whether the token's window has closed at t.
func (t *PreviewToken) ExpiredAt(at time.Time) bool {
	return at.After(t.ExpiresAt)
}

// RemainingSeconds is the rest of the confirmation window, never negative.
func (t *PreviewToken) RemainingSeconds(at time.Time) int64 {
	d := t.ExpiresAt.Sub(at)
	if d <= 0 {
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}

// TokenRepository Persistence of preview tokens. State transitions are
// compare-and-swap: Consume and Expire succeed only while the stored state is
// PENDING, and report false when another caller got there first.
type TokenRepository interface {
	Create(ctx context.Context, token *PreviewToken) error

	// Find returns shared.ErrNotFound when no token has the value.
	Find(ctx context.Context, value string) (*PreviewToken, error)

	// Consume moves PENDING to CONSUMED if the token has not expired at at.
	Consume(ctx context.Context, value string, at time.Time) (bool, error)

	// Expire moves PENDING to EXPIRED.
	Expire(ctx context.Context, value string, at time.Time) (bool, error)

	// Prune deletes tokens that expired or were consumed before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)
}
