package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

const rollbackTimeout = 5 * time.Second

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	db          TxBeginner
	lockTimeout time.Duration
}

// NewTxRunner construye el runner. lockTimeout > 0 limita la espera de SELECT FOR UPDATE
// dentro de cada transacción (SET LOCAL lock_timeout).
func NewTxRunner(db TxBeginner, lockTimeout time.Duration) *TxRunner {
	return &TxRunner{db: db, lockTimeout: lockTimeout}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// El Rollback usa un contexto desligado del llamador: una cancelación no deja el lock tomado.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	stockRepo repository.StockRepository,
) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.StorageFailure("begin transaction", err)
	}
	finished := false
	defer func() {
		if finished {
			return
		}
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		_ = tx.Rollback(rbCtx)
	}()

	if r.lockTimeout > 0 {
		ms := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			return domain.StorageFailure("set lock_timeout", err)
		}
	}

	if err := fn(NewMovementRepository(tx), NewStockRepository(tx)); err != nil {
		return err
	}

	// Cancelado antes del commit: el rollback es seguro y el resultado es cierto
	if err := ctx.Err(); err != nil {
		return domain.StorageFailure("commit transaction", err)
	}
	finished = true
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", domain.ErrCommitUncertain, err)
	}
	return nil
}
