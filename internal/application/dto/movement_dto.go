package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
)

// CreateMovementRequest body para POST /api/movements.
type CreateMovementRequest struct {
	Type      string `json:"type" validate:"required,oneof=IN OUT"`
	Quantity  FlexInt `json:"quantity" validate:"required,gt=0" swaggertype:"integer"`
	ProductID FlexInt `json:"product_id" validate:"required,gt=0" swaggertype:"integer"`
}

// FlexInt entero que también acepta su forma de string ("5"), como envían
// algunos clientes de formularios. Decimales y texto no numérico se rechazan.
type FlexInt int64

// UnmarshalJSON implementa json.Unmarshaler.
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("entero inválido %s", data)
	}
	*n = FlexInt(v)
	return nil
}

// MovementResponse representación JSON de un movimiento.
type MovementResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Quantity  int64     `json:"quantity"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MovementFromEntity convierte la entidad a su DTO.
func MovementFromEntity(m *entity.Movement) MovementResponse {
	return MovementResponse{
		ID:        m.ID,
		Type:      string(m.Direction),
		Quantity:  m.Quantity,
		ProductID: m.ProductID,
		CreatedAt: m.OccurredAt.UTC(),
	}
}

// MovementsFromEntities convierte una lista; nunca devuelve nil (se serializa como []).
func MovementsFromEntities(list []*entity.Movement) []MovementResponse {
	out := make([]MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, MovementFromEntity(m))
	}
	return out
}

// StockResponse cantidad actual de un producto.
type StockResponse struct {
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockFromEntity convierte la proyección a su DTO.
func StockFromEntity(s *entity.StockLevel) StockResponse {
	return StockResponse{ProductID: s.ProductID, Quantity: s.Quantity, UpdatedAt: s.UpdatedAt.UTC()}
}

// StocksFromEntities convierte una lista; nunca devuelve nil.
func StocksFromEntities(list []*entity.StockLevel) []StockResponse {
	out := make([]StockResponse, 0, len(list))
	for _, s := range list {
		out = append(out, StockFromEntity(s))
	}
	return out
}

// ReconciliationResponse resultado de conciliar un producto.
type ReconciliationResponse struct {
	ProductID     int64     `json:"product_id"`
	Projected     int64     `json:"projected_quantity"`
	Replayed      int64     `json:"replayed_quantity"`
	Drift         int64     `json:"drift"`
	MovementCount int       `json:"movement_count"`
	Consistent    bool      `json:"consistent"`
	Issue         string    `json:"issue,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// ReconciliationFromReport convierte el reporte del caso de uso.
func ReconciliationFromReport(r *inventory.ReconciliationReport) ReconciliationResponse {
	return ReconciliationResponse{
		ProductID:     r.ProductID,
		Projected:     r.Projected,
		Replayed:      r.Replayed,
		Drift:         r.Drift,
		MovementCount: r.MovementCount,
		Consistent:    r.Consistent,
		Issue:         r.Issue,
		CheckedAt:     r.CheckedAt.UTC(),
	}
}
