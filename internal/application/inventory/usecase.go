package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
	"github.com/jhoicas/stocklink-api/internal/domain/inventory"
	"github.com/jhoicas/stocklink-api/internal/domain/repository"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

const (
	tracerName            = "github.com/jhoicas/stocklink-api/ledger"
	defaultPublishTimeout = time.Second
)

// LedgerDeps dependencias del caso de uso del ledger.
type LedgerDeps struct {
	TxRunner  TxRunner
	Movements repository.MovementRepository // lecturas sin bloqueo
	Stock     repository.StockRepository    // lecturas sin bloqueo
	Publisher MovementPublisher             // opcional; NopPublisher si es nil
	Journal   JournalRenderer               // opcional; sin él ExportJournal falla
	Log       *logger.Logger                // opcional; Nop si es nil

	// TxTimeout acota la duración total de la transacción (espera de lock incluida). 0 = sin límite propio.
	TxTimeout time.Duration
	// PublishTimeout acota la publicación del evento posterior al commit.
	PublishTimeout time.Duration
}

// LedgerUseCase registra movimientos de stock de forma atómica y expone las lecturas del ledger.
// Cada movimiento bloquea solo la fila de su producto (SELECT FOR UPDATE) durante la transacción.
type LedgerUseCase struct {
	txRunner       TxRunner
	movements      repository.MovementRepository
	stock          repository.StockRepository
	publisher      MovementPublisher
	journal        JournalRenderer
	log            *logger.Logger
	tracer         trace.Tracer
	txTimeout      time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

// NewLedgerUseCase construye el caso de uso.
func NewLedgerUseCase(deps LedgerDeps) *LedgerUseCase {
	uc := &LedgerUseCase{
		txRunner:       deps.TxRunner,
		movements:      deps.Movements,
		stock:          deps.Stock,
		publisher:      deps.Publisher,
		journal:        deps.Journal,
		log:            deps.Log,
		tracer:         otel.Tracer(tracerName),
		txTimeout:      deps.TxTimeout,
		publishTimeout: deps.PublishTimeout,
		now:            time.Now,
	}
	if uc.publisher == nil {
		uc.publisher = NopPublisher{}
	}
	if uc.log == nil {
		uc.log = logger.Nop()
	}
	uc.log = uc.log.Named("ledger")
	if uc.publishTimeout <= 0 {
		uc.publishTimeout = defaultPublishTimeout
	}
	return uc
}

// CreateMovementInput entrada para registrar un movimiento.
type CreateMovementInput struct {
	Direction entity.Direction
	Quantity  int64
	ProductID int64
	ActorID   string // usuario autenticado; solo para trazabilidad en logs
}

// CreateMovement valida la entrada, y dentro de una transacción: bloquea la fila del producto,
// calcula la nueva cantidad, la escribe y agrega el movimiento al log. Commit o Rollback.
// Sin reintentos: ante ErrStorageFailure el llamador decide (ver domain.IsRetryable).
func (uc *LedgerUseCase) CreateMovement(ctx context.Context, in CreateMovementInput) (*entity.Movement, error) {
	ctx, span := uc.tracer.Start(ctx, "ledger.CreateMovement", trace.WithAttributes(
		attribute.Int64("product.id", in.ProductID),
		attribute.String("movement.type", string(in.Direction)),
		attribute.Int64("movement.quantity", in.Quantity),
	))
	defer span.End()

	// Validación antes de tomar cualquier bloqueo
	if in.ProductID <= 0 {
		err := fmt.Errorf("%w: product_id debe ser positivo (recibido %d)", domain.ErrInvalidMovement, in.ProductID)
		return nil, uc.fail(span, in, err)
	}
	if err := inventory.ValidateMovement(in.Direction, in.Quantity); err != nil {
		return nil, uc.fail(span, in, err)
	}

	txCtx := ctx
	if uc.txTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, uc.txTimeout)
		defer cancel()
	}

	var created *entity.Movement
	err := uc.txRunner.Run(txCtx, func(movRepo repository.MovementRepository, stockRepo repository.StockRepository) error {
		level, err := stockRepo.GetForUpdate(txCtx, in.ProductID)
		if err != nil {
			return err
		}
		next, err := inventory.ComputeNext(level.Quantity, in.Direction, in.Quantity)
		if err != nil {
			return err
		}
		if err := stockRepo.UpdateQuantity(txCtx, in.ProductID, next); err != nil {
			return err
		}
		m := &entity.Movement{
			Direction: in.Direction,
			Quantity:  in.Quantity,
			ProductID: in.ProductID,
		}
		if err := movRepo.Append(txCtx, m); err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, uc.fail(span, in, classify("crear movimiento", err))
	}

	span.SetAttributes(attribute.Int64("movement.id", created.ID))
	uc.log.Info().
		Int64("movement_id", created.ID).
		Int64("product_id", created.ProductID).
		Str("type", string(created.Direction)).
		Int64("quantity", created.Quantity).
		Str("actor", in.ActorID).
		Msg("movimiento registrado")

	uc.publish(ctx, created)
	return created, nil
}

// ListMovements devuelve todos los movimientos confirmados, del más reciente al más antiguo. No bloquea.
func (uc *LedgerUseCase) ListMovements(ctx context.Context) ([]*entity.Movement, error) {
	ctx, span := uc.tracer.Start(ctx, "ledger.ListMovements")
	defer span.End()

	list, err := uc.movements.List(ctx)
	if err != nil {
		err = classify("listar movimientos", err)
		recordError(span, err)
		uc.log.Error().Err(err).Msg("listar movimientos")
		return nil, err
	}
	if list == nil {
		list = []*entity.Movement{}
	}
	return list, nil
}

// ListProductMovements devuelve la historia de un producto en orden de commit.
func (uc *LedgerUseCase) ListProductMovements(ctx context.Context, productID int64) ([]*entity.Movement, error) {
	ctx, span := uc.tracer.Start(ctx, "ledger.ListProductMovements", trace.WithAttributes(
		attribute.Int64("product.id", productID),
	))
	defer span.End()

	if _, err := uc.stock.Get(ctx, productID); err != nil {
		err = classify("historial de producto", err)
		recordError(span, err)
		return nil, err
	}
	list, err := uc.movements.ListByProduct(ctx, productID)
	if err != nil {
		err = classify("historial de producto", err)
		recordError(span, err)
		uc.log.Error().Err(err).Int64("product_id", productID).Msg("historial de producto")
		return nil, err
	}
	if list == nil {
		list = []*entity.Movement{}
	}
	return list, nil
}

// GetStock lee la cantidad actual de un producto sin bloquear.
func (uc *LedgerUseCase) GetStock(ctx context.Context, productID int64) (*entity.StockLevel, error) {
	ctx, span := uc.tracer.Start(ctx, "ledger.GetStock", trace.WithAttributes(
		attribute.Int64("product.id", productID),
	))
	defer span.End()

	level, err := uc.stock.Get(ctx, productID)
	if err != nil {
		err = classify("consultar stock", err)
		recordError(span, err)
		return nil, err
	}
	return level, nil
}

// ListStock devuelve la cantidad de todos los productos.
func (uc *LedgerUseCase) ListStock(ctx context.Context) ([]*entity.StockLevel, error) {
	ctx, span := uc.tracer.Start(ctx, "ledger.ListStock")
	defer span.End()

	levels, err := uc.stock.List(ctx)
	if err != nil {
		err = classify("listar stock", err)
		recordError(span, err)
		uc.log.Error().Err(err).Msg("listar stock")
		return nil, err
	}
	if levels == nil {
		levels = []*entity.StockLevel{}
	}
	return levels, nil
}

// ReconciliationReport compara la proyección de un producto con el replay de su log.
type ReconciliationReport struct {
	ProductID     int64
	Projected     int64 // cantidad almacenada en la proyección
	Replayed      int64 // cantidad recalculada desde los movimientos
	Drift         int64 // Projected - Replayed
	MovementCount int
	Consistent    bool
	Issue         string // motivo cuando el replay no es válido (prefijo negativo)
	CheckedAt     time.Time
}

// Reconcile recalcula la cantidad de un producto desde su log y la compara con la proyección.
// Se ejecuta con el lock del producto tomado para leer ambos lados en el mismo instante.
// Es la verificación indicada tras un ErrCommitUncertain.
func (uc *LedgerUseCase) Reconcile(ctx context.Context, productID int64) (*ReconciliationReport, error) {
	ctx, span := uc.tracer.Start(ctx, "ledger.Reconcile", trace.WithAttributes(
		attribute.Int64("product.id", productID),
	))
	defer span.End()

	txCtx := ctx
	if uc.txTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, uc.txTimeout)
		defer cancel()
	}

	var report *ReconciliationReport
	err := uc.txRunner.Run(txCtx, func(movRepo repository.MovementRepository, stockRepo repository.StockRepository) error {
		level, err := stockRepo.GetForUpdate(txCtx, productID)
		if err != nil {
			return err
		}
		movs, err := movRepo.ListByProduct(txCtx, productID)
		if err != nil {
			return err
		}
		report = &ReconciliationReport{
			ProductID:     productID,
			Projected:     level.Quantity,
			MovementCount: len(movs),
			CheckedAt:     uc.now(),
		}
		replayed, rerr := inventory.Replay(movs)
		report.Replayed = replayed
		report.Drift = level.Quantity - replayed
		if rerr != nil {
			report.Issue = rerr.Error()
		}
		report.Consistent = rerr == nil && report.Drift == 0
		return nil
	})
	if err != nil {
		err = classify("conciliar producto", err)
		recordError(span, err)
		if !errors.Is(err, domain.ErrProductNotFound) {
			uc.log.Error().Err(err).Int64("product_id", productID).Msg("conciliar producto")
		}
		return nil, err
	}

	span.SetAttributes(attribute.Bool("reconcile.consistent", report.Consistent), attribute.Int64("reconcile.drift", report.Drift))
	if !report.Consistent {
		uc.log.Warn().
			Int64("product_id", productID).
			Int64("projected", report.Projected).
			Int64("replayed", report.Replayed).
			Str("issue", report.Issue).
			Msg("proyección inconsistente con el log de movimientos")
	}
	return report, nil
}

// ReconcileAll concilia todos los productos con fila en la proyección.
func (uc *LedgerUseCase) ReconcileAll(ctx context.Context) ([]*ReconciliationReport, error) {
	levels, err := uc.ListStock(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]*ReconciliationReport, 0, len(levels))
	for _, l := range levels {
		r, err := uc.Reconcile(ctx, l.ProductID)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// ExportJournal genera el diario de movimientos (PDF) con el mismo orden que ListMovements.
func (uc *LedgerUseCase) ExportJournal(ctx context.Context) ([]byte, error) {
	if uc.journal == nil {
		return nil, errors.New("exportar diario: generador no configurado")
	}
	movs, err := uc.ListMovements(ctx)
	if err != nil {
		return nil, err
	}
	ctx, span := uc.tracer.Start(ctx, "ledger.ExportJournal", trace.WithAttributes(
		attribute.Int("journal.movements", len(movs)),
	))
	defer span.End()

	doc, err := uc.journal.RenderMovementJournal(ctx, movs, uc.now())
	if err != nil {
		err = fmt.Errorf("exportar diario: %w", err)
		recordError(span, err)
		uc.log.Error().Err(err).Msg("exportar diario")
		return nil, err
	}
	return doc, nil
}

// publish notifica el movimiento confirmado. Usa un contexto desligado de la cancelación del
// llamador: el commit ya ocurrió. Un fallo solo se registra.
func (uc *LedgerUseCase) publish(ctx context.Context, m *entity.Movement) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.publishTimeout)
	defer cancel()
	if err := uc.publisher.PublishMovementRecorded(pubCtx, m); err != nil {
		uc.log.Warn().Err(err).
			Int64("movement_id", m.ID).
			Int64("product_id", m.ProductID).
			Msg("no se pudo publicar MovementRecorded")
	}
}

// fail registra el error en el span y en el log con el nivel que corresponde a su categoría.
func (uc *LedgerUseCase) fail(span trace.Span, in CreateMovementInput, err error) error {
	recordError(span, err)
	switch {
	case errors.Is(err, domain.ErrCommitUncertain):
		uc.log.Error().Err(err).
			Int64("product_id", in.ProductID).
			Str("type", string(in.Direction)).
			Int64("quantity", in.Quantity).
			Msg("commit incierto: requiere conciliación del producto")
	case errors.Is(err, domain.ErrStorageFailure):
		uc.log.Error().Err(err).Int64("product_id", in.ProductID).Msg("movimiento no registrado")
	default:
		uc.log.Warn().Err(err).
			Int64("product_id", in.ProductID).
			Str("type", string(in.Direction)).
			Int64("quantity", in.Quantity).
			Msg("movimiento rechazado")
	}
	return err
}

// classify deja pasar los errores de dominio y convierte cualquier otro en ErrStorageFailure.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidMovement),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrStorageFailure):
		return err
	default:
		return domain.StorageFailure(op, err)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
