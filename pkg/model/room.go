package model

import "time"

// Room is a lookup entity: the reservation engine only cares about its id.
type Room struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name        string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity    int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=500"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=1000"`
	Location    string    `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=200"`
	Amenities   []string  `json:"amenities,omitempty" bson:"amenities,omitempty" validate:"omitempty,dive,min=1,max=50"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type RoomUpdate struct {
	Name        string    `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity    *int      `json:"capacity,omitempty" validate:"omitempty,min=1,max=500"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	Location    *string   `json:"location,omitempty" validate:"omitempty,max=200"`
	Amenities   *[]string `json:"amenities,omitempty" validate:"omitempty,dive,min=1,max=50"`
	IsActive    *bool     `json:"is_active,omitempty"`
}
