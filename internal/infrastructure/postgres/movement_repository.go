package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
	"github.com/jhoicas/stocklink-api/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación del log de movimientos sobre PostgreSQL (usable con pool o tx).
// Solo inserta y lee: no hay UPDATE ni DELETE sobre movements.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Append inserta el movimiento y completa ID y OccurredAt con lo generado por la base.
// created_at usa clock_timestamp(): se toma después del lock de fila, no al inicio de la tx.
func (r *MovementRepo) Append(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO movements (type, quantity, product_id, created_at)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query, string(m.Direction), m.Quantity, m.ProductID).Scan(&m.ID, &m.OccurredAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, m.ProductID)
		}
		return domain.StorageFailure("insert movement", err)
	}
	return nil
}

// List devuelve todos los movimientos, del más reciente al más antiguo.
func (r *MovementRepo) List(ctx context.Context) ([]*entity.Movement, error) {
	query := `
		SELECT id, type, quantity, product_id, created_at
		FROM movements
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, "list movements", query)
}

// ListByProduct devuelve los movimientos de un producto en orden de commit.
func (r *MovementRepo) ListByProduct(ctx context.Context, productID int64) ([]*entity.Movement, error) {
	query := `
		SELECT id, type, quantity, product_id, created_at
		FROM movements
		WHERE product_id = $1
		ORDER BY created_at, id`
	return r.list(ctx, "list product movements", query, productID)
}

func (r *MovementRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Movement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageFailure(op, err)
	}
	defer rows.Close()

	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, domain.StorageFailure(op, err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFailure(op, err)
	}
	return list, nil
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var (
		m   entity.Movement
		dir string
	)
	if err := row.Scan(&m.ID, &dir, &m.Quantity, &m.ProductID, &m.OccurredAt); err != nil {
		return nil, err
	}
	m.Direction = entity.Direction(dir)
	return &m, nil
}
