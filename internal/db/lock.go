package db

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrLocked is returned when another process holds the job lock.
var ErrLocked = eris.New("db: job lock held by another process")

// TryJobLock takes a transaction-scoped advisory lock named by name. The lock
// lives as long as the returned release func has not been called; it is held
// on the transaction's connection, so it survives pool connection churn.
func TryJobLock(ctx context.Context, pool Pool, name string) (func(context.Context) error, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "db: lock: begin tx")
	}

	var ok bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock(hashtext($1))", name).Scan(&ok); err != nil {
		_ = tx.Rollback(ctx)
		return nil, eris.Wrapf(err, "db: lock: acquire %s", name)
	}
	if !ok {
		_ = tx.Rollback(ctx)
		return nil, eris.Wrapf(ErrLocked, "db: lock %s", name)
	}

	return func(ctx context.Context) error {
		return eris.Wrapf(tx.Rollback(ctx), "db: lock: release %s", name)
	}, nil
}
