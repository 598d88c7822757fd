package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/stocklink-api/internal/domain/entity"
	"github.com/jhoicas/stocklink-api/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción con repos atados a ella.
// Commit si fn devuelve nil; Rollback en cualquier otro caso (incluida la cancelación del contexto).
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		stockRepo repository.StockRepository,
	) error) error
}

// MovementPublisher notifica movimientos ya confirmados (fuera de la transacción).
type MovementPublisher interface {
	PublishMovementRecorded(ctx context.Context, movement *entity.Movement) error
}

// JournalRenderer genera el diario de movimientos en un formato descargable (PDF).
type JournalRenderer interface {
	RenderMovementJournal(ctx context.Context, movements []*entity.Movement, generatedAt time.Time) ([]byte, error)
}

// NopPublisher descarta los eventos; se usa cuando no hay broker configurado.
type NopPublisher struct{}

func (NopPublisher) PublishMovementRecorded(context.Context, *entity.Movement) error { return nil }
