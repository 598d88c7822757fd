package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
	"github.com/jhoicas/stocklink-api/internal/domain/repository"
)

var errNoTx = errors.New("operación requiere una transacción")

// TxRunner ejecuta fn con repos atados a una transacción en memoria.
// Los locks de producto se toman al leer con GetForUpdate y se liberan al salir de Run.
type TxRunner struct {
	store *Store
}

// NewTxRunner crea el runner sobre store.
func NewTxRunner(store *Store) *TxRunner {
	return &TxRunner{store: store}
}

// Run: Commit si fn devuelve nil y el contexto sigue vivo; en otro caso descarta las escrituras.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	stockRepo repository.StockRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageFailure("iniciar transacción", err)
	}
	tx := &memTx{
		store:      r.store,
		unlock:     make(map[int64]func()),
		quantities: make(map[int64]int64),
	}
	defer tx.releaseAll()

	if err := fn(&MovementRepository{store: r.store, tx: tx}, &StockRepository{store: r.store, tx: tx}); err != nil {
		return err
	}
	// Cancelado antes del commit: nada se aplicó, no hay incertidumbre
	if err := ctx.Err(); err != nil {
		return domain.StorageFailure("commit", err)
	}
	r.store.apply(tx.quantities, tx.movements)
	return nil
}

// memTx escrituras pendientes y locks tomados por una transacción.
type memTx struct {
	store      *Store
	unlock     map[int64]func()
	quantities map[int64]int64
	movements  []entity.Movement
	lastAt     time.Time
}

func (tx *memTx) lock(ctx context.Context, productID int64) error {
	if _, held := tx.unlock[productID]; held {
		return nil
	}
	release, err := tx.store.locks.Lock(ctx, productID)
	if err != nil {
		return domain.StorageFailure(fmt.Sprintf("bloquear producto %d", productID), err)
	}
	tx.unlock[productID] = release
	return nil
}

func (tx *memTx) releaseAll() {
	for id, release := range tx.unlock {
		release()
		delete(tx.unlock, id)
	}
}

// quantity lee la cantidad vista por la transacción (pendiente o confirmada).
func (tx *memTx) quantity(productID int64) (entity.StockLevel, bool) {
	p, ok := tx.store.product(productID)
	if !ok {
		return p, false
	}
	if q, pending := tx.quantities[productID]; pending {
		p.Quantity = q
	}
	return p, true
}

var (
	_ repository.StockRepository    = (*StockRepository)(nil)
	_ repository.MovementRepository = (*MovementRepository)(nil)
)
