package inventory

import (
	"fmt"
	"math"

	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
)

// ValidateMovement rechaza cantidades no positivas y direcciones desconocidas.
// Se ejecuta antes de tomar cualquier bloqueo.
func ValidateMovement(dir entity.Direction, quantity int64) error {
	if !dir.Valid() {
		return fmt.Errorf("%w: tipo %q", domain.ErrInvalidMovement, dir)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: la cantidad debe ser positiva (recibido %d)", domain.ErrInvalidMovement, quantity)
	}
	return nil
}

// ComputeNext implementa la regla de no negatividad (servicio de dominio, sin I/O).
// IN:  NuevaCantidad = CantidadActual + Cantidad
// OUT: NuevaCantidad = CantidadActual - Cantidad; falla con ErrInsufficientStock si queda < 0.
// Ante un error el llamador conserva la cantidad original.
func ComputeNext(current int64, dir entity.Direction, quantity int64) (int64, error) {
	if err := ValidateMovement(dir, quantity); err != nil {
		return current, err
	}
	if dir == entity.DirectionIN {
		if current > math.MaxInt64-quantity {
			return current, fmt.Errorf("%w: desborde de cantidad", domain.ErrInvalidMovement)
		}
		return current + quantity, nil
	}
	next := current - quantity
	if next < 0 {
		return current, fmt.Errorf("%w: disponible %d, solicitado %d", domain.ErrInsufficientStock, current, quantity)
	}
	return next, nil
}

// Replay recalcula la cantidad de un producto a partir de sus movimientos en orden de commit,
// partiendo de cero. Falla si algún prefijo deja la cantidad en negativo.
func Replay(movements []*entity.Movement) (int64, error) {
	var qty int64
	for _, m := range movements {
		next, err := ComputeNext(qty, m.Direction, m.Quantity)
		if err != nil {
			return qty, fmt.Errorf("replay movimiento %d: %w", m.ID, err)
		}
		qty = next
	}
	return qty, nil
}
