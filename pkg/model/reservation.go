package model

import (
	"time"
)

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Reservation is a booking of one room for one interval. Only reservations in
// StatusActive participate in conflict checks; cancellation is a one-way
// transition and cancelled reservations stay queryable for history.
type Reservation struct {
	ID          string   `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	RoomID      string   `json:"room_id" bson:"room_id" validate:"required,mongodb"`
	OwnerID     string   `json:"owner_id" bson:"owner_id" validate:"required"`
	Interval    Interval `json:"interval" bson:",inline"`
	Title       string   `json:"title" bson:"title" validate:"required,min=2,max=200"`
	Description string   `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	Status      string   `json:"status" bson:"status" validate:"required,oneof=active cancelled"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty" validate:"omitempty"`
}

func (r *Reservation) IsActive() bool {
	return r.Status == StatusActive
}

// ReservationUpdate is a partial edit. Nil/empty fields keep the current
// value; a changed room or interval is re-validated against the conflict rule
// with the reservation's own id excluded.
type ReservationUpdate struct {
	RoomID      string     `json:"room_id,omitempty" validate:"omitempty,mongodb"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Title       string     `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
}
