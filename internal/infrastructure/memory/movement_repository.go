package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
)

// MovementRepository implementa repository.MovementRepository sobre Store (append-only).
type MovementRepository struct {
	store *Store
	tx    *memTx
}

// Append asigna ID y OccurredAt y deja el movimiento pendiente hasta el commit.
// Toma el lock del producto si la transacción aún no lo tiene.
func (r *MovementRepository) Append(ctx context.Context, m *entity.Movement) error {
	if r.tx == nil {
		return domain.StorageFailure("insertar movimiento", errNoTx)
	}
	if err := r.tx.lock(ctx, m.ProductID); err != nil {
		return err
	}
	if _, ok := r.store.product(m.ProductID); !ok {
		return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, m.ProductID)
	}
	id, at := r.store.reserve(m.ProductID, r.tx.lastAt)
	m.ID = id
	m.OccurredAt = at
	r.tx.lastAt = at
	r.tx.movements = append(r.tx.movements, *m)
	return nil
}

// List devuelve los movimientos confirmados, del más reciente al más antiguo.
func (r *MovementRepository) List(ctx context.Context) ([]*entity.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageFailure("listar movimientos", err)
	}
	return r.store.allMovements(), nil
}

// ListByProduct devuelve los movimientos de un producto en orden de commit.
// Dentro de una transacción incluye los propios pendientes al final.
func (r *MovementRepository) ListByProduct(ctx context.Context, productID int64) ([]*entity.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageFailure("listar movimientos de producto", err)
	}
	committed := r.store.productMovements(productID)
	out := make([]*entity.Movement, 0, len(committed))
	for _, m := range committed {
		out = append(out, &m)
	}
	if r.tx != nil {
		for _, m := range r.tx.movements {
			if m.ProductID == productID {
				out = append(out, &m)
			}
		}
	}
	return out, nil
}
