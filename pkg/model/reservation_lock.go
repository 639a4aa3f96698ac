package model

import "time"

// ReservationLock is an advisory lock document keyed by room id. Inserting it
// serializes the conflict-check-then-write sequence per room: the unique _id
// makes the second concurrent attempt fail with a duplicate-key error, and the
// TTL index on expires_at clears locks orphaned by a crashed process.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
