// reconcile recalcula el stock de cada producto desde su log de movimientos y lo compara con la proyección.
//
// Uso: go run ./cmd/reconcile [product_id ...]
// Sin argumentos concilia todos los productos. Sale con código 1 si algún producto no cuadra
// y con 2 ante errores de configuración o almacenamiento.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/infrastructure/backend"
	"github.com/jhoicas/stocklink-api/pkg/config"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: os.Stderr})

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("abrir almacenamiento del ledger")
		os.Exit(2)
	}
	defer store.Close()

	uc := inventory.NewLedgerUseCase(inventory.LedgerDeps{
		TxRunner:  store.TxRunner,
		Movements: store.Movements,
		Stock:     store.Stock,
		Log:       log,
		TxTimeout: cfg.Ledger.TxTimeout,
	})

	ok, err := run(ctx, uc, os.Args[1:], os.Stdout)
	if err != nil {
		log.Error().Err(err).Msg("conciliación interrumpida")
		os.Exit(2)
	}
	if !ok {
		os.Exit(1)
	}
}

// run imprime una línea por producto y devuelve false si alguno tiene deriva.
func run(ctx context.Context, uc *inventory.LedgerUseCase, args []string, w io.Writer) (bool, error) {
	var reports []*inventory.ReconciliationReport
	if len(args) == 0 {
		all, err := uc.ReconcileAll(ctx)
		if err != nil {
			return false, err
		}
		reports = all
	} else {
		for _, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil || id <= 0 {
				return false, fmt.Errorf("product_id inválido %q", a)
			}
			r, err := uc.Reconcile(ctx, id)
			if err != nil {
				return false, fmt.Errorf("producto %d: %w", id, err)
			}
			reports = append(reports, r)
		}
	}

	ok := true
	for _, r := range reports {
		status := "OK"
		if !r.Consistent {
			status = "DRIFT"
			ok = false
		}
		fmt.Fprintf(w, "%-5s product=%d projected=%d replayed=%d drift=%d movements=%d",
			status, r.ProductID, r.Projected, r.Replayed, r.Drift, r.MovementCount)
		if r.Issue != "" {
			fmt.Fprintf(w, " issue=%q", r.Issue)
		}
		fmt.Fprintln(w)
	}
	return ok, nil
}
