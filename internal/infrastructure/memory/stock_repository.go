package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
)

// StockRepository implementa repository.StockRepository sobre Store.
// Sin tx solo sirven Get y List.
type StockRepository struct {
	store *Store
	tx    *memTx
}

// GetForUpdate toma el lock del producto (hasta el fin de la transacción) y lee su cantidad.
func (r *StockRepository) GetForUpdate(ctx context.Context, productID int64) (*entity.StockLevel, error) {
	if r.tx == nil {
		return nil, domain.StorageFailure("get for update", errNoTx)
	}
	if err := r.tx.lock(ctx, productID); err != nil {
		return nil, err
	}
	p, ok := r.tx.quantity(productID)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	return &p, nil
}

// UpdateQuantity deja la nueva cantidad pendiente hasta el commit.
func (r *StockRepository) UpdateQuantity(ctx context.Context, productID int64, quantity int64) error {
	if r.tx == nil {
		return domain.StorageFailure("actualizar cantidad", errNoTx)
	}
	if quantity < 0 {
		return domain.StorageFailure("actualizar cantidad", fmt.Errorf("producto %d: cantidad negativa %d", productID, quantity))
	}
	if err := r.tx.lock(ctx, productID); err != nil {
		return err
	}
	if _, ok := r.tx.store.product(productID); !ok {
		return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	r.tx.quantities[productID] = quantity
	return nil
}

// Get lee la cantidad confirmada sin bloquear (dentro de tx incluye lo pendiente).
func (r *StockRepository) Get(ctx context.Context, productID int64) (*entity.StockLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageFailure("consultar stock", err)
	}
	var (
		p  entity.StockLevel
		ok bool
	)
	if r.tx != nil {
		p, ok = r.tx.quantity(productID)
	} else {
		p, ok = r.store.product(productID)
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	return &p, nil
}

// List devuelve todos los productos ordenados por id.
func (r *StockRepository) List(ctx context.Context) ([]*entity.StockLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageFailure("listar stock", err)
	}
	list := r.store.allProducts()
	if r.tx != nil {
		for _, p := range list {
			if q, pending := r.tx.quantities[p.ProductID]; pending {
				p.Quantity = q
			}
		}
	}
	return list, nil
}
