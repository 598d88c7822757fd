package postgres

import (
	"context"
	"fmt"
)

// schemaStatements crea las tablas del ledger si no existen.
// products.quantity es la proyección; movements es el log append-only.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		reference  TEXT,
		quantity   BIGINT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id         BIGSERIAL PRIMARY KEY,
		type       TEXT NOT NULL CHECK (type IN ('IN', 'OUT')),
		quantity   BIGINT NOT NULL CHECK (quantity > 0),
		product_id BIGINT NOT NULL REFERENCES products (id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_product_created ON movements (product_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_created ON movements (created_at DESC, id DESC)`,
}

// EnsureSchema aplica el DDL del ledger (idempotente).
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schemaStatements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema (sentencia %d): %w", i+1, err)
		}
	}
	return nil
}
