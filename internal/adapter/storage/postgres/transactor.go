package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor over the connection pool.
// Every money mutation runs inside one transaction it hands out, so the
// wallet row lock covers the ledger insert and the balance update
// together.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a Transactor over the pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
