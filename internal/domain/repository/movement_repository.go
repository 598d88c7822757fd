package repository

import (
	"context"

	"github.com/jhoicas/stocklink-api/internal/domain/entity"
)

// MovementRepository define el puerto de persistencia del log de movimientos (append-only).
type MovementRepository interface {
	// Append persiste el movimiento y le asigna ID y OccurredAt.
	Append(ctx context.Context, movement *entity.Movement) error
	// List devuelve todos los movimientos, del más reciente al más antiguo.
	List(ctx context.Context) ([]*entity.Movement, error)
	// ListByProduct devuelve los movimientos de un producto en orden de commit.
	ListByProduct(ctx context.Context, productID int64) ([]*entity.Movement, error)
}
