package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stocklink-api/internal/infrastructure/backend"
	"github.com/jhoicas/stocklink-api/pkg/config"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

func TestOpen_MemoriaRegistraProductos(t *testing.T) {
	cfg := &config.Config{Ledger: config.LedgerConfig{Backend: config.BackendMemory, MemoryProducts: 3}}

	b, err := backend.Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.BackendMemory, b.Name)
	require.NoError(t, b.Ping(context.Background()))
	list, err := b.Stock.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, s := range list {
		assert.Equal(t, int64(i+1), s.ProductID)
		assert.Zero(t, s.Quantity)
	}
}

func TestOpen_BackendDesconocido(t *testing.T) {
	cfg := &config.Config{Ledger: config.LedgerConfig{Backend: "sqlite"}}

	_, err := backend.Open(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}
