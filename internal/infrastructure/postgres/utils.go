package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeLockNotAvailable    = "55P03" // lock_timeout agotado
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isForeignKeyViolation: el movimiento referencia un producto inexistente.
func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == codeForeignKeyViolation
}

// isCheckViolation: CHECK (quantity >= 0) rechazó la escritura.
func isCheckViolation(err error) bool {
	return pgErrorCode(err) == codeCheckViolation
}

// isLockTimeout: la espera del lock de fila superó lock_timeout.
func isLockTimeout(err error) bool {
	return pgErrorCode(err) == codeLockNotAvailable
}
