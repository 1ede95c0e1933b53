package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error
}

type Manager struct {
	DB     *sql.DB
	Policy Policy
}

// WithTx runs fn in a read-committed transaction. The whole transaction is
// replayed when it fails with a transient error.
func (m *Manager) WithTx(
	ctx context.Context,
	fn func(ctx context.Context, tx *sql.Tx) error,
) error {
	return m.Policy.Do(ctx, func(ctx context.Context) error {
		tx, err := m.DB.BeginTx(ctx, &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
		})
		if err != nil {
			return err
		}

		if err := fn(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				return fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
			return err
		}

		return tx.Commit()
	})
}
