package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"roombook/pkg/kafka"
	"roombook/pkg/model"
)

const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationUpdated   = "reservation.updated"
	TypeReservationCancelled = "reservation.cancelled"
	TypeReservationDeleted   = "reservation.deleted"

	schemaVersion = "1"
	source        = "roombook"
)

// ReservationEvent is the payload published for every reservation lifecycle
// transition. Consumers (calendars, notifications) key off room_id ordering.
type ReservationEvent struct {
	Type        string             `json:"type"`
	Reservation *model.Reservation `json:"reservation"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, reservation *model.Reservation) error
}

type kafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(producer *kafka.Producer) Publisher {
	return &kafkaPublisher{producer: producer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, eventType string, reservation *model.Reservation) error {
	msg, err := kafka.NewMessage().
		WithKey(reservation.RoomID).
		WithValue(ReservationEvent{
			Type:        eventType,
			Reservation: reservation,
			OccurredAt:  time.Now().UTC(),
		}).
		WithHeader(kafka.HeaderEventID, uuid.NewString()).
		WithHeader(kafka.HeaderEventType, eventType).
		WithHeader(kafka.HeaderSchemaVersion, schemaVersion).
		WithHeader(kafka.HeaderSource, source).
		Build()
	if err != nil {
		return err
	}

	return p.producer.Publish(ctx, msg)
}

type noopPublisher struct{}

// NewNoopPublisher is used when no Kafka brokers are configured; the engine
// behaves identically, events just go nowhere.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, *model.Reservation) error {
	return nil
}
