// Package dbtest holds helpers for tests of services that run on in-memory stores.
package dbtest

import "context"

// NoTx satisfies db.Transactor by running fn directly.
type NoTx struct{}

func (NoTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
