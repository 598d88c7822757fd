// Package kafka publica los eventos del ledger en Kafka (segmentio/kafka-go).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jhoicas/stocklink-api/internal/application/inventory"
	"github.com/jhoicas/stocklink-api/internal/domain/entity"
	"github.com/jhoicas/stocklink-api/pkg/logger"
)

var _ inventory.MovementPublisher = (*MovementPublisher)(nil)

// EventTypeMovementRecorded tipo del evento emitido tras cada commit.
const EventTypeMovementRecorded = "MovementRecorded"

// Producer lo mínimo que se usa de *kafkago.Writer.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// MovementRecordedEvent payload JSON del evento.
type MovementRecordedEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	MovementID int64     `json:"movement_id"`
	Type       string    `json:"type"`
	Quantity   int64     `json:"quantity"`
	ProductID  int64     `json:"product_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// MovementPublisher implementa inventory.MovementPublisher sobre un Producer.
type MovementPublisher struct {
	producer Producer
}

// NewWriter crea el writer de movimientos. Hash sobre la key (product_id): los eventos de un
// mismo producto van a la misma partición y conservan su orden de commit.
// Async: WriteMessages solo encola y no retiene la respuesta HTTP mientras el broker no responde;
// los fallos de entrega llegan a Completion y se registran en log.
func NewWriter(brokers []string, topic string, log *logger.Logger) *kafkago.Writer {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("kafka")
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             completionLogger(log),
	}
}

// completionLogger registra los lotes que el writer asíncrono no pudo entregar.
func completionLogger(log *logger.Logger) func([]kafkago.Message, error) {
	return func(msgs []kafkago.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, 0, len(msgs))
		for _, m := range msgs {
			keys = append(keys, string(m.Key))
		}
		log.Error().Err(err).
			Int("messages", len(msgs)).
			Strs("product_ids", keys).
			Msg("entrega de MovementRecorded fallida")
	}
}

// NewMovementPublisher construye el publicador.
func NewMovementPublisher(producer Producer) *MovementPublisher {
	return &MovementPublisher{producer: producer}
}

// PublishMovementRecorded serializa el movimiento y lo escribe con el contexto de traza en los headers.
func (p *MovementPublisher) PublishMovementRecorded(ctx context.Context, m *entity.Movement) error {
	event := MovementRecordedEvent{
		EventID:    uuid.NewString(),
		EventType:  EventTypeMovementRecorded,
		MovementID: m.ID,
		Type:       string(m.Direction),
		Quantity:   m.Quantity,
		ProductID:  m.ProductID,
		CreatedAt:  m.OccurredAt.UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializar %s: %w", EventTypeMovementRecorded, err)
	}

	msg := kafkago.Message{
		Key:     []byte(strconv.FormatInt(m.ProductID, 10)),
		Value:   payload,
		Time:    event.CreatedAt,
		Headers: traceHeaders(ctx, EventTypeMovementRecorded),
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publicar %s movimiento %d: %w", EventTypeMovementRecorded, m.ID, err)
	}
	return nil
}

// Close cierra el producer subyacente.
func (p *MovementPublisher) Close() error {
	return p.producer.Close()
}

// traceHeaders inyecta traceparent/tracestate para que los consumidores continúen la traza.
func traceHeaders(ctx context.Context, eventType string) []kafkago.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafkago.Header, 0, len(carrier)+1)
	headers = append(headers, kafkago.Header{Key: "event_type", Value: []byte(eventType)})
	for k, v := range carrier {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
