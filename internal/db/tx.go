package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"go.uber.org/zap"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Rollback is meant to be deferred right after Begin. After a successful
// Commit it is a no-op.
func Rollback(ctx context.Context, tx pgx.Tx, logger *zap.Logger) {
	shutdownCtx := context.WithoutCancel(ctx)

	err := tx.Rollback(shutdownCtx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Warn(
			shutdownCtx,
			logger,
			"Error rolling back transaction",
			zap.Error(err),
		)
	}
}
