// Package memory implementa el ledger de stock en memoria de proceso (desarrollo, tests, un solo nodo).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/stocklink-api/internal/domain"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
)

// Store estado compartido del backend en memoria: proyección por producto y log de movimientos.
// Las escrituras solo llegan aquí en el commit de un Tx.
type Store struct {
	mu        sync.RWMutex
	products  map[int64]entity.StockLevel
	movements []entity.Movement // orden de commit
	lastAt    map[int64]time.Time
	nextID    int64

	locks *KeyedMutex
	now   func() time.Time
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		products: make(map[int64]entity.StockLevel),
		lastAt:   make(map[int64]time.Time),
		locks:    NewKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Seed registra el producto con la cantidad inicial y, si quantity > 0, un movimiento IN de saldo inicial.
// Proyección y log quedan consistentes. Si el producto ya existe no hace nada.
// Una cantidad negativa se rechaza con ErrInvalidMovement sin tocar el store.
func (s *Store) Seed(productID, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("%w: saldo inicial negativo %d para el producto %d", domain.ErrInvalidMovement, quantity, productID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; ok {
		return nil
	}
	now := s.now()
	s.products[productID] = entity.StockLevel{ProductID: productID, Quantity: quantity, UpdatedAt: now}
	if quantity > 0 {
		s.nextID++
		s.movements = append(s.movements, entity.Movement{
			ID:         s.nextID,
			Direction:  entity.DirectionIN,
			Quantity:   quantity,
			ProductID:  productID,
			OccurredAt: now,
		})
		s.lastAt[productID] = now
	}
	return nil
}

// Ping siempre disponible.
func (s *Store) Ping(context.Context) error { return nil }

// Stock repositorio de lectura sin bloqueo fuera de transacción.
func (s *Store) Stock() *StockRepository {
	return &StockRepository{store: s}
}

// Movements repositorio de lectura fuera de transacción.
func (s *Store) Movements() *MovementRepository {
	return &MovementRepository{store: s}
}

func (s *Store) product(productID int64) (entity.StockLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	return p, ok
}

func (s *Store) productMovements(productID int64) []entity.Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.Movement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) allMovements() []*entity.Movement {
	s.mu.RLock()
	out := make([]*entity.Movement, 0, len(s.movements))
	for _, m := range s.movements {
		out = append(out, &m)
	}
	s.mu.RUnlock()

	// Igual que ORDER BY created_at DESC, id DESC
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) allProducts() []*entity.StockLevel {
	s.mu.RLock()
	out := make([]*entity.StockLevel, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, &p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// reserve asigna id y timestamp a un movimiento nuevo. El llamador tiene el lock del producto,
// así que lastAt del producto no cambia hasta su commit. Los ids descartados por rollback no se reutilizan.
func (s *Store) reserve(productID int64, floor time.Time) (int64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	at := s.now()
	if last := s.lastAt[productID]; at.Before(last) {
		at = last
	}
	if at.Before(floor) {
		at = floor
	}
	return s.nextID, at
}

// apply publica de forma atómica las escrituras de una transacción.
func (s *Store) apply(quantities map[int64]int64, movements []entity.Movement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, qty := range quantities {
		s.products[id] = entity.StockLevel{ProductID: id, Quantity: qty, UpdatedAt: now}
	}
	for _, m := range movements {
		s.movements = append(s.movements, m)
		if m.OccurredAt.After(s.lastAt[m.ProductID]) {
			s.lastAt[m.ProductID] = m.OccurredAt
		}
	}
}
