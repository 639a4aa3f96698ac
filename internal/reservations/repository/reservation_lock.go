package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	reservationerrors "roombook/internal/reservations/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"
)

const LockCollectionName = "Reservation_locks"

// ReservationLockRepository manages the per-room advisory locks that
// serialize check-then-write reservation attempts (see migrate: unique _id
// plus a TTL index on expires_at).
type ReservationLockRepository interface {
	Create(ctx context.Context, lock *model.ReservationLock) error
	Delete(ctx context.Context, lockID string) error
}

type mongoReservationLockRepository struct {
	collection *mongo.Collection
}

func NewReservationLockRepository(cfg *config.Config) ReservationLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Create inserts the lock document. A duplicate-key error means another
// request holds the room and is surfaced as ErrLockHeld.
func (r *mongoReservationLockRepository) Create(ctx context.Context, lock *model.ReservationLock) error {
	lock.CreatedAt = time.Now()

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationerrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire reservation lock: %w", err)
	}

	return nil
}

func (r *mongoReservationLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
