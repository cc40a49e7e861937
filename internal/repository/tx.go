package repository

import "context"

// TxManager runs a function inside a single storage transaction. Implemented
// by persistence.DB; faked in tests.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
