package shared

import "context"

// UnitOfWork owns a transaction boundary. Repositories called with the ctx
// handed to fn take part in the same transaction. Nested Execute calls join
// the outer transaction.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

type inTxKey struct{}

// MarkInTransaction tags ctx as belonging to an open unit of work.
// Implementations call it on the ctx they hand to fn.
func MarkInTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, inTxKey{}, true)
}

// InTransaction reports whether ctx belongs to an open unit of work. Work
// sharing one transaction shares one connection and must not overlap.
func InTransaction(ctx context.Context) bool {
	in, _ := ctx.Value(inTxKey{}).(bool)
	return in
}
