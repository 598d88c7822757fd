package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
	"github.com/jhoicas/stocklink-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre la tabla products (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// GetForUpdate obtiene la cantidad y bloquea la fila del producto (SELECT FOR UPDATE).
// El lock se mantiene hasta Commit o Rollback de la tx.
func (r *StockRepo) GetForUpdate(ctx context.Context, productID int64) (*entity.StockLevel, error) {
	query := `
		SELECT id, quantity, updated_at
		FROM products WHERE id = $1
		FOR UPDATE`
	s, err := scanStockLevel(r.q.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
		}
		if isLockTimeout(err) {
			return nil, domain.StorageFailure("get stock for update (lock_timeout)", err)
		}
		return nil, domain.StorageFailure("get stock for update", err)
	}
	return s, nil
}

// UpdateQuantity escribe la nueva cantidad del producto.
func (r *StockRepo) UpdateQuantity(ctx context.Context, productID int64, quantity int64) error {
	query := `UPDATE products SET quantity = $1, updated_at = now() WHERE id = $2`
	tag, err := r.q.Exec(ctx, query, quantity, productID)
	if err != nil {
		if isCheckViolation(err) {
			return domain.StorageFailure("update stock (cantidad negativa)", err)
		}
		return domain.StorageFailure("update stock", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	return nil
}

// Get obtiene la cantidad actual sin bloquear.
func (r *StockRepo) Get(ctx context.Context, productID int64) (*entity.StockLevel, error) {
	query := `SELECT id, quantity, updated_at FROM products WHERE id = $1`
	s, err := scanStockLevel(r.q.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
		}
		return nil, domain.StorageFailure("get stock", err)
	}
	return s, nil
}

// List devuelve la cantidad de todos los productos ordenados por id.
func (r *StockRepo) List(ctx context.Context) ([]*entity.StockLevel, error) {
	query := `SELECT id, quantity, updated_at FROM products ORDER BY id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, domain.StorageFailure("list stock", err)
	}
	defer rows.Close()

	var list []*entity.StockLevel
	for rows.Next() {
		s, err := scanStockLevel(rows)
		if err != nil {
			return nil, domain.StorageFailure("scan stock", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure("list stock", err)
	}
	return list, nil
}

func scanStockLevel(row pgx.Row) (*entity.StockLevel, error) {
	var s entity.StockLevel
	if err := row.Scan(&s.ProductID, &s.Quantity, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
