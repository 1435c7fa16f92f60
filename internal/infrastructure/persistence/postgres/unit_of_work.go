package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// advisoryLockPrefix namespaces the per-user advisory lock keys.
const advisoryLockPrefix = "zensync:user:"

// UnitOfWork runs each call in one transaction holding a transaction-scoped advisory
// lock on the user, so concurrent calls for one user serialize across processes.
type UnitOfWork struct {
	conn *Connection
}

// NewUnitOfWork creates a unit of work over conn.
func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Do implements progress.UnitOfWork.
func (u *UnitOfWork) Do(ctx context.Context, user shared.UserID, fn func(ctx context.Context, stores progress.Stores) error) error {
	return u.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, advisoryLockPrefix+string(user),
		); err != nil {
			return shared.WrapError("postgres", "Lock", shared.ErrServiceUnavailable, "advisory lock failed", err)
		}
		return fn(ctx, progress.Stores{
			Events:     NewEventRepository(tx),
			Aggregates: NewAggregateRepository(tx),
			Ledger:     NewLedgerRepository(tx),
		})
	})
}

// Stores returns autocommit stores bound to the pool, for reads outside a unit of work.
func (u *UnitOfWork) Stores() progress.Stores {
	pool := u.conn.Pool()
	return progress.Stores{
		Events:     NewEventRepository(pool),
		Aggregates: NewAggregateRepository(pool),
		Ledger:     NewLedgerRepository(pool),
	}
}

var _ progress.UnitOfWork = (*UnitOfWork)(nil)
