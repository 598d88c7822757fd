// Package backend arma el almacenamiento del ledger (PostgreSQL o memoria) según la configuración.
package backend

import (
	"context"
	"fmt"

	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/domain/repository"
	"github.com/jhoicas/stocklink-api/internal/infrastructure/memory"
	"github.com/jhoicas/stocklink-api/internal/infrastructure/postgres"
	"github.com/jhoicas/stocklink-api/pkg/config"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

// Backend repos y runner transaccional de un almacenamiento concreto.
type Backend struct {
	Name      string
	TxRunner  inventory.TxRunner
	Movements repository.MovementRepository
	Stock     repository.StockRepository
	Ping      func(ctx context.Context) error
	Close     func()
}

// Open conecta al backend configurado. Con postgres crea el esquema si falta;
// con memory registra los productos 1..MemoryProducts con stock 0.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		store := memory.NewStore()
		for id := int64(1); id <= int64(cfg.Ledger.MemoryProducts); id++ {
			if err := store.Seed(id, 0); err != nil {
				return nil, err
			}
		}
		log.Warn().Int("products", cfg.Ledger.MemoryProducts).Msg("backend en memoria: los datos se pierden al reiniciar")
		return &Backend{
			Name:      config.BackendMemory,
			TxRunner:  memory.NewTxRunner(store),
			Movements: store.Movements(),
			Stock:     store.Stock(),
			Ping:      store.Ping,
			Close:     func() {},
		}, nil

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("esquema: %w", err)
		}
		log.Info().Dur("lock_timeout", cfg.Ledger.LockTimeout).Msg("backend PostgreSQL listo")
		return &Backend{
			Name:      config.BackendPostgres,
			TxRunner:  postgres.NewTxRunner(pool, cfg.Ledger.LockTimeout),
			Movements: postgres.NewMovementRepository(pool),
			Stock:     postgres.NewStockRepository(pool),
			Ping:      pool.Ping,
			Close:     pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("backend desconocido %q", cfg.Ledger.Backend)
	}
}
