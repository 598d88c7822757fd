package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/stocklink-api/internal/domain"
)

// Direction sentido de un movimiento de stock.
type Direction string

const (
	DirectionIN  Direction = "IN"  // entrada, incrementa el stock
	DirectionOUT Direction = "OUT" // salida, decrementa el stock
)

// Valid indica si la dirección es una de las dos reconocidas.
func (d Direction) Valid() bool {
	return d == DirectionIN || d == DirectionOUT
}

// ParseDirection convierte "IN"/"OUT" (sin distinguir mayúsculas) en Direction.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: tipo %q", domain.ErrInvalidMovement, s)
	}
	return d, nil
}

// Movement hecho inmutable: un delta de stock aplicado a un producto en un instante.
// ID y OccurredAt los asigna el almacén al persistir; no existe update ni delete.
type Movement struct {
	ID         int64
	Direction  Direction
	Quantity   int64 // siempre > 0; el signo lo da Direction
	ProductID  int64
	OccurredAt time.Time
}

// IsInbound indica si el movimiento suma stock.
func (m *Movement) IsInbound() bool {
	return m.Direction == DirectionIN
}

// Delta devuelve el efecto con signo sobre la proyección.
func (m *Movement) Delta() int64 {
	if m.IsInbound() {
		return m.Quantity
	}
	return -m.Quantity
}
