package database

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

// Transaction wraps sqlx.Tx with idempotent Commit and Rollback.
type Transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	isClosed bool
}

func NewTx(tx *sqlx.Tx, logger ectologger.Logger) *Transaction {
	return &Transaction{
		Tx:     tx,
		logger: logger,
	}
}

func (t *Transaction) IsOpen() bool {
	return !t.isClosed
}

func (t *Transaction) Rollback(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	t.isClosed = true
	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("Error while rolling back transaction")
		return ferrors.Storage("rollback transaction", err)
	}
	return nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	// a failed commit leaves nothing to roll back
	t.isClosed = true
	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("Error while committing transaction")
		return ferrors.Storage("commit transaction", err)
	}
	return nil
}
