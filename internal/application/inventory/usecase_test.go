package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
	"github.com/jhoicas/stocklink-api/internal/domain/repository"
	"github.com/jhoicas/stocklink-api/internal/infrastructure/memory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

// countingRunner cuenta las transacciones abiertas sobre el runner real.
type countingRunner struct {
	inner inventory.TxRunner
	calls atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context, fn func(repository.MovementRepository, repository.StockRepository) error) error {
	r.calls.Add(1)
	return r.inner.Run(ctx, fn)
}

// failingRunner devuelve err sin ejecutar fn.
type failingRunner struct{ err error }

func (r failingRunner) Run(context.Context, func(repository.MovementRepository, repository.StockRepository) error) error {
	return r.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*entity.Movement
	err    error
}

func (p *fakePublisher) PublishMovementRecorded(_ context.Context, m *entity.Movement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, m)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeJournal struct {
	got []*entity.Movement
}

func (j *fakeJournal) RenderMovementJournal(_ context.Context, movs []*entity.Movement, _ time.Time) ([]byte, error) {
	j.got = movs
	return []byte("%PDF-fake"), nil
}

type fixture struct {
	store     *memory.Store
	runner    *countingRunner
	publisher *fakePublisher
	journal   *fakeJournal
	uc        *inventory.LedgerUseCase
}

func newFixture(t *testing.T, seed map[int64]int64) *fixture {
	t.Helper()
	store := memory.NewStore()
	for id, qty := range seed {
		require.NoError(t, store.Seed(id, qty))
	}
	f := &fixture{
		store:     store,
		runner:    &countingRunner{inner: memory.NewTxRunner(store)},
		publisher: &fakePublisher{},
		journal:   &fakeJournal{},
	}
	f.uc = inventory.NewLedgerUseCase(inventory.LedgerDeps{
		TxRunner:  f.runner,
		Movements: store.Movements(),
		Stock:     store.Stock(),
		Publisher: f.publisher,
		Journal:   f.journal,
	})
	return f
}

func (f *fixture) quantity(t *testing.T, productID int64) int64 {
	t.Helper()
	lvl, err := f.uc.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return lvl.Quantity
}

func in(productID, qty int64) inventory.CreateMovementInput {
	return inventory.CreateMovementInput{Direction: entity.DirectionIN, Quantity: qty, ProductID: productID}
}

func out(productID, qty int64) inventory.CreateMovementInput {
	return inventory.CreateMovementInput{Direction: entity.DirectionOUT, Quantity: qty, ProductID: productID}
}

// ─────────────────────────────────────────────────────────────────────────────
// CreateMovement: escenarios básicos
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateMovement_EntradaSumaYDevuelveMovimiento(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 0})
	ctx := context.Background()

	m, err := f.uc.CreateMovement(ctx, in(1, 5))
	require.NoError(t, err)
	assert.Positive(t, m.ID)
	assert.Equal(t, entity.DirectionIN, m.Direction)
	assert.Equal(t, int64(5), m.Quantity)
	assert.Equal(t, int64(1), m.ProductID)
	assert.False(t, m.OccurredAt.IsZero())
	assert.Equal(t, int64(5), f.quantity(t, 1))
}

func TestCreateMovement_SalidaResta(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 5})

	_, err := f.uc.CreateMovement(context.Background(), out(1, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.quantity(t, 1))
}

func TestCreateMovement_SalidaHastaCero(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 4})

	_, err := f.uc.CreateMovement(context.Background(), out(1, 4))
	require.NoError(t, err)
	assert.Zero(t, f.quantity(t, 1))
}

func TestCreateMovement_StockInsuficienteNoDejaRastro(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 2})
	ctx := context.Background()
	before, err := f.uc.ListMovements(ctx)
	require.NoError(t, err)

	_, err = f.uc.CreateMovement(ctx, out(1, 10))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.False(t, domain.IsRetryable(err))

	assert.Equal(t, int64(2), f.quantity(t, 1))
	after, err := f.uc.ListMovements(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	assert.Zero(t, f.publisher.count())
}

func TestCreateMovement_EntradaInvalidaNoAbreTransaccion(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 0})
	ctx := context.Background()

	cases := []inventory.CreateMovementInput{
		in(1, 0),
		in(1, -5),
		{Direction: entity.Direction("TRANSFER"), Quantity: 1, ProductID: 1},
		in(0, 1),
		in(-3, 1),
	}
	for _, input := range cases {
		_, err := f.uc.CreateMovement(ctx, input)
		require.ErrorIs(t, err, domain.ErrInvalidMovement)
	}
	assert.Zero(t, f.runner.calls.Load(), "la validación ocurre antes de tomar el lock")
	assert.Zero(t, f.quantity(t, 1))
}

func TestCreateMovement_ProductoInexistente(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 0})

	_, err := f.uc.CreateMovement(context.Background(), in(99, 1))
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	movs, err := f.uc.ListMovements(context.Background())
	require.NoError(t, err)
	assert.Empty(t, movs)
}

func TestListMovements_MasRecientePrimero(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 0, 2: 0})
	ctx := context.Background()

	first, err := f.uc.CreateMovement(ctx, in(1, 5))
	require.NoError(t, err)
	second, err := f.uc.CreateMovement(ctx, in(2, 3))
	require.NoError(t, err)
	third, err := f.uc.CreateMovement(ctx, out(1, 2))
	require.NoError(t, err)

	movs, err := f.uc.ListMovements(ctx)
	require.NoError(t, err)
	require.Len(t, movs, 3)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, []int64{movs[0].ID, movs[1].ID, movs[2].ID})
}

func TestListMovements_VacioNoEsNil(t *testing.T) {
	f := newFixture(t, nil)
	movs, err := f.uc.ListMovements(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, movs)
	assert.Empty(t, movs)
}

// ─────────────────────────────────────────────────────────────────────────────
// Concurrencia
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateMovement_UltimaUnidadSoloUnaSalida(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 1})
	const workers = 16

	var (
		wg           sync.WaitGroup
		ok, rejected atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.uc.CreateMovement(context.Background(), out(1, 1))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())
	assert.Zero(t, f.quantity(t, 1))
}

func TestCreateMovement_ConcurrenteCoincideConReplay(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 10, 2: 0, 3: 3})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pid := int64(i%3 + 1)
			input := in(pid, int64(i%4+1))
			if i%2 == 1 {
				input = out(pid, int64(i%3+1))
			}
			_, err := f.uc.CreateMovement(ctx, input)
			if err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("error inesperado: %v", err)
			}
		}(i)
	}
	wg.Wait()

	reports, err := f.uc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.True(t, r.Consistent, "producto %d: proyección %d, replay %d (%s)", r.ProductID, r.Projected, r.Replayed, r.Issue)
		assert.GreaterOrEqual(t, r.Projected, int64(0))
	}
}

func TestCreateMovement_ProductosDistintosNoSeBloquean(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 5, 2: 5})
	runner := memory.NewTxRunner(f.store)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), func(_ repository.MovementRepository, stockRepo repository.StockRepository) error {
			if _, err := stockRepo.GetForUpdate(context.Background(), 1); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.uc.CreateMovement(ctx, out(2, 1))
	require.NoError(t, err, "el lock del producto 1 no afecta al producto 2")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(4), f.quantity(t, 2))
	assert.Equal(t, int64(5), f.quantity(t, 1))
}

func TestLecturas_NoEsperanLockDeEscritura(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 5})
	runner := memory.NewTxRunner(f.store)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), func(_ repository.MovementRepository, stockRepo repository.StockRepository) error {
			if _, err := stockRepo.GetForUpdate(context.Background(), 1); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer func() {
		close(release)
		require.NoError(t, <-done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	movs, err := f.uc.ListMovements(ctx)
	require.NoError(t, err, "ListMovements no debe esperar el lock del producto")
	assert.Len(t, movs, 1)

	hist, err := f.uc.ListProductMovements(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	lvl, err := f.uc.GetStock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), lvl.Quantity)
}

func TestCreateMovement_TimeoutEsperandoLock(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 5})
	runner := memory.NewTxRunner(f.store)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), func(_ repository.MovementRepository, stockRepo repository.StockRepository) error {
			if _, err := stockRepo.GetForUpdate(context.Background(), 1); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.uc.CreateMovement(ctx, out(1, 1))
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, domain.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, int64(5), f.quantity(t, 1))
	movs, err := f.uc.ListProductMovements(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, movs, 1, "solo el saldo inicial")
	assert.Zero(t, f.publisher.count())
}

func TestCreateMovement_TxTimeoutPropio(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 5})
	uc := inventory.NewLedgerUseCase(inventory.LedgerDeps{
		TxRunner:  memory.NewTxRunner(f.store),
		Movements: f.store.Movements(),
		Stock:     f.store.Stock(),
		TxTimeout: 30 * time.Millisecond,
	})
	runner := memory.NewTxRunner(f.store)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), func(_ repository.MovementRepository, stockRepo repository.StockRepository) error {
			if _, err := stockRepo.GetForUpdate(context.Background(), 1); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	_, err := uc.CreateMovement(context.Background(), out(1, 1))
	require.ErrorIs(t, err, domain.ErrStorageFailure)

	close(release)
	require.NoError(t, <-done)
}

// ─────────────────────────────────────────────────────────────────────────────
// Errores de almacenamiento
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateMovement_CommitInciertoNoEsReintentable(t *testing.T) {
	pub := &fakePublisher{}
	uc := inventory.NewLedgerUseCase(inventory.LedgerDeps{
		TxRunner:  failingRunner{err: domain.StorageFailure("commit", domain.ErrCommitUncertain)},
		Publisher: pub,
	})

	_, err := uc.CreateMovement(context.Background(), in(1, 1))
	require.ErrorIs(t, err, domain.ErrCommitUncertain)
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.False(t, domain.IsRetryable(err))
	assert.Zero(t, pub.count())
}

func TestCreateMovement_ErrorDesconocidoSeClasificaComoAlmacenamiento(t *testing.T) {
	cause := errors.New("connection reset by peer")
	uc := inventory.NewLedgerUseCase(inventory.LedgerDeps{TxRunner: failingRunner{err: cause}})

	_, err := uc.CreateMovement(context.Background(), in(1, 1))
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.ErrorIs(t, err, cause)
	assert.True(t, domain.IsRetryable(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Publicación de eventos
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateMovement_PublicaSoloTrasCommit(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 0})
	ctx := context.Background()

	m, err := f.uc.CreateMovement(ctx, in(1, 2))
	require.NoError(t, err)
	_, err = f.uc.CreateMovement(ctx, out(1, 5))
	require.Error(t, err)

	require.Equal(t, 1, f.publisher.count())
	assert.Equal(t, m.ID, f.publisher.events[0].ID)
}

func TestCreateMovement_FalloDePublicacionNoRevierte(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 0})
	f.publisher.err = errors.New("broker caído")

	m, err := f.uc.CreateMovement(context.Background(), in(1, 3))
	require.NoError(t, err)
	assert.Positive(t, m.ID)
	assert.Equal(t, int64(3), f.quantity(t, 1))
}

// stuckPublisher simula un broker que no responde: espera hasta que vence su contexto.
type stuckPublisher struct{ called atomic.Bool }

func (p *stuckPublisher) PublishMovementRecorded(ctx context.Context, _ *entity.Movement) error {
	p.called.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestCreateMovement_BrokerSinRespuestaAcotadoPorPublishTimeout(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Seed(1, 0))
	pub := &stuckPublisher{}
	uc := inventory.NewLedgerUseCase(inventory.LedgerDeps{
		TxRunner:       memory.NewTxRunner(store),
		Movements:      store.Movements(),
		Stock:          store.Stock(),
		Publisher:      pub,
		PublishTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	m, err := uc.CreateMovement(context.Background(), in(1, 4))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Positive(t, m.ID)
	assert.True(t, pub.called.Load())
	assert.Less(t, elapsed, time.Second, "la publicación no debe retener la respuesta más allá de PublishTimeout")

	lvl, err := uc.GetStock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), lvl.Quantity)
}

// ─────────────────────────────────────────────────────────────────────────────
// Consultas, conciliación y exportación
// ─────────────────────────────────────────────────────────────────────────────

func TestListProductMovements(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 0, 2: 0})
	ctx := context.Background()

	a, err := f.uc.CreateMovement(ctx, in(1, 4))
	require.NoError(t, err)
	_, err = f.uc.CreateMovement(ctx, in(2, 4))
	require.NoError(t, err)
	b, err := f.uc.CreateMovement(ctx, out(1, 1))
	require.NoError(t, err)

	movs, err := f.uc.ListProductMovements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.Equal(t, a.ID, movs[0].ID, "orden de commit")
	assert.Equal(t, b.ID, movs[1].ID)

	_, err = f.uc.ListProductMovements(ctx, 77)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestListStock(t *testing.T) {
	f := newFixture(t, map[int64]int64{2: 4, 1: 1})
	levels, err := f.uc.ListStock(context.Background())
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, int64(1), levels[0].ProductID)
	assert.Equal(t, int64(4), levels[1].Quantity)
}

func TestReconcile_Consistente(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 3})
	ctx := context.Background()
	_, err := f.uc.CreateMovement(ctx, out(1, 2))
	require.NoError(t, err)

	r, err := f.uc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, r.Consistent)
	assert.Equal(t, int64(1), r.Projected)
	assert.Equal(t, int64(1), r.Replayed)
	assert.Zero(t, r.Drift)
	assert.Equal(t, 2, r.MovementCount)
	assert.Empty(t, r.Issue)
}

func TestReconcile_DetectaDeriva(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 3})
	ctx := context.Background()

	// Proyección alterada sin movimiento correspondiente
	runner := memory.NewTxRunner(f.store)
	require.NoError(t, runner.Run(ctx, func(_ repository.MovementRepository, stockRepo repository.StockRepository) error {
		return stockRepo.UpdateQuantity(ctx, 1, 8)
	}))

	r, err := f.uc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.False(t, r.Consistent)
	assert.Equal(t, int64(8), r.Projected)
	assert.Equal(t, int64(3), r.Replayed)
	assert.Equal(t, int64(5), r.Drift)
}

func TestReconcile_ProductoInexistente(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.uc.Reconcile(context.Background(), 5)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestExportJournal(t *testing.T) {
	f := newFixture(t, map[int64]int64{1: 0})
	ctx := context.Background()
	_, err := f.uc.CreateMovement(ctx, in(1, 1))
	require.NoError(t, err)

	doc, err := f.uc.ExportJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(doc))
	assert.Len(t, f.journal.got, 1)
}

func TestExportJournal_SinGenerador(t *testing.T) {
	store := memory.NewStore()
	uc := inventory.NewLedgerUseCase(inventory.LedgerDeps{
		TxRunner:  memory.NewTxRunner(store),
		Movements: store.Movements(),
		Stock:     store.Stock(),
	})
	_, err := uc.ExportJournal(context.Background())
	require.Error(t, err)
}
