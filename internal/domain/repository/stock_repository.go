package repository

import (
	"context"

	"github.com/jhoicas/stocklink-api/internal/domain/entity"
)

// StockRepository define el puerto para leer/escribir la proyección de cantidad por producto.
// GetForUpdate y UpdateQuantity se usan dentro de una transacción (TxRunner); Get y List leen sin bloquear.
type StockRepository interface {
	// GetForUpdate lee la cantidad y bloquea la fila del producto hasta que termine la transacción
	// (SELECT FOR UPDATE). Devuelve domain.ErrProductNotFound si el producto no existe.
	GetForUpdate(ctx context.Context, productID int64) (*entity.StockLevel, error)
	// UpdateQuantity escribe la nueva cantidad; visible para otros solo tras el commit.
	UpdateQuantity(ctx context.Context, productID int64, quantity int64) error
	Get(ctx context.Context, productID int64) (*entity.StockLevel, error)
	List(ctx context.Context) ([]*entity.StockLevel, error)
}
