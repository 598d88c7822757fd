package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio del ledger de stock (sin dependencias externas).
var (
	ErrInvalidMovement   = errors.New("movimiento inválido")
	ErrProductNotFound   = errors.New("producto no encontrado")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrStorageFailure    = errors.New("fallo de almacenamiento")

	// ErrCommitUncertain: el commit falló sin que se sepa si la base lo aplicó.
	// Es también un ErrStorageFailure, pero no debe reintentarse a ciegas.
	ErrCommitUncertain = fmt.Errorf("%w: resultado del commit incierto", ErrStorageFailure)
)

// StorageFailure envuelve un error del almacén conservando tanto el sentinel como la causa.
func StorageFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// IsRetryable indica si el llamador puede reintentar la operación sin riesgo de duplicar movimientos.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageFailure) && !errors.Is(err, ErrCommitUncertain)
}
