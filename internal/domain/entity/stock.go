package entity

import "time"

// StockLevel representa la cantidad actual de un producto (proyección materializada de sus movimientos).
// Quantity nunca es negativa.
type StockLevel struct {
	ProductID int64
	Quantity  int64
	UpdatedAt time.Time
}
