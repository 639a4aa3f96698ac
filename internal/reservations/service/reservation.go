package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"roombook/internal/events"
	reservationerrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/repository"
	"roombook/internal/reservations/validator"
	"roombook/pkg/auth"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

// ConflictResult reports whether an interval collides with an active
// reservation on the same room, and with which one.
type ConflictResult struct {
	Conflict      bool   `json:"conflict"`
	ConflictsWith string `json:"conflicts_with,omitempty"`
}

// RoomLister supplies the default candidate set for availability queries when
// the caller names no rooms.
type RoomLister interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// ReservationService is the availability engine: the one place that decides
// whether a reservation may exist. Every mutating operation either fully
// succeeds or fails with a typed error and leaves the store unchanged.
type ReservationService interface {
	CheckConflict(ctx context.Context, roomID string, interval model.Interval, excludeID string) (*ConflictResult, error)
	Reserve(ctx context.Context, reservation *model.Reservation, requester auth.Requester) error
	Update(ctx context.Context, id string, updates *model.ReservationUpdate, requester auth.Requester) (*model.Reservation, error)
	Cancel(ctx context.Context, id string, requester auth.Requester) error
	Delete(ctx context.Context, id string, requester auth.Requester) error
	FilterAvailable(ctx context.Context, roomIDs []string, interval model.Interval) ([]string, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	List(ctx context.Context, requester auth.Requester, limit int, offset int64) ([]*model.Reservation, int64, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.ReservationLockRepository
	rooms     RoomLister
	validator *validator.ReservationValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.ReservationLockRepository,
	rooms RoomLister,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		rooms:     rooms,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// CheckConflict applies the overlap rule against the room's active
// reservations. Read-only: callers that intend to write must go through
// Reserve/Update, which repeat this check under the room lock.
func (s *reservationService) CheckConflict(ctx context.Context, roomID string, interval model.Interval, excludeID string) (*ConflictResult, error) {
	if roomID == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}
	if err := interval.Validate(); err != nil {
		return nil, invalidInterval(interval)
	}

	return s.findConflict(ctx, roomID, interval, excludeID)
}

func (s *reservationService) findConflict(ctx context.Context, roomID string, interval model.Interval, excludeID string) (*ConflictResult, error) {
	existing, err := s.repo.FindActiveByRoom(ctx, roomID, &interval)
	if err != nil {
		return nil, storeFailure("Failed to load active reservations", err)
	}

	for _, reservation := range existing {
		if excludeID != "" && reservation.ID == excludeID {
			continue
		}
		if reservation.Interval.Overlaps(interval) {
			return &ConflictResult{Conflict: true, ConflictsWith: reservation.ID}, nil
		}
	}
	return &ConflictResult{}, nil
}

func (s *reservationService) Reserve(ctx context.Context, reservation *model.Reservation, requester auth.Requester) error {
	reservation.OwnerID = requester.UserID
	s.applyDefaults(reservation)
	s.sanitize(reservation)
	if err := s.validate(reservation); err != nil {
		return err
	}

	lockID, err := s.acquireRoomLock(ctx, reservation.RoomID)
	if err != nil {
		return err
	}
	defer s.releaseRoomLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		result, err := s.findConflict(sessCtx, reservation.RoomID, reservation.Interval, "")
		if err != nil {
			return err
		}
		if result.Conflict {
			return slotTaken(reservation.Interval, result.ConflictsWith)
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return storeFailure("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reserve slot",
			"room_id", reservation.RoomID,
			"interval", reservation.Interval.String(),
			"error", err,
		)
		return err
	}

	s.publish(ctx, events.TypeReservationCreated, reservation)
	s.cfg.Log.Info("Reservation created",
		"id", reservation.ID,
		"room_id", reservation.RoomID,
		"owner_id", reservation.OwnerID,
		"interval", reservation.Interval.String(),
	)
	return nil
}

func (s *reservationService) Update(ctx context.Context, id string, updates *model.ReservationUpdate, requester auth.Requester) (*model.Reservation, error) {
	existing, err := s.getForMutation(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive() {
		return nil, apperrors.NotFoundWithID("Active reservation", id)
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Reservation update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	// The conflict domain is the reservation's (possibly new) room.
	lockID, err := s.acquireRoomLock(ctx, merged.RoomID)
	if err != nil {
		return nil, err
	}
	defer s.releaseRoomLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		result, err := s.findConflict(sessCtx, merged.RoomID, merged.Interval, id)
		if err != nil {
			return err
		}
		if result.Conflict {
			return slotTaken(merged.Interval, result.ConflictsWith)
		}
		if err := s.repo.Update(sessCtx, id, merged); err != nil {
			return storeFailure("Failed to update reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update reservation", "id", id, "error", err)
		return nil, err
	}

	s.publish(ctx, events.TypeReservationUpdated, merged)
	s.cfg.Log.Info("Reservation updated", "id", id, "room_id", merged.RoomID)
	return merged, nil
}

// Cancel transitions Active to Cancelled. A second cancel reports not found:
// the transition is one-way and not idempotent in the observable API.
func (s *reservationService) Cancel(ctx context.Context, id string, requester auth.Requester) error {
	existing, err := s.getForMutation(ctx, id, requester)
	if err != nil {
		return err
	}
	if !existing.IsActive() {
		return apperrors.NotFoundWithID("Active reservation", id).
			WithDetails(map[string]any{"id": id, "status": existing.Status})
	}

	if err := s.repo.Cancel(ctx, id); err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			// Lost a race with another cancel or a delete.
			return apperrors.NotFoundWithID("Active reservation", id)
		}
		return storeFailure("Failed to cancel reservation", err)
	}

	existing.Status = model.StatusCancelled
	s.publish(ctx, events.TypeReservationCancelled, existing)
	s.cfg.Log.Info("Reservation cancelled", "id", id, "room_id", existing.RoomID)
	return nil
}

func (s *reservationService) Delete(ctx context.Context, id string, requester auth.Requester) error {
	existing, err := s.getForMutation(ctx, id, requester)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Reservation", id)
		}
		return storeFailure("Failed to delete reservation", err)
	}

	s.publish(ctx, events.TypeReservationDeleted, existing)
	s.cfg.Log.Info("Reservation deleted", "id", id, "room_id", existing.RoomID)
	return nil
}

// FilterAvailable returns the rooms whose CheckConflict would be Free for the
// interval. One batched store read, same predicate, same results.
func (s *reservationService) FilterAvailable(ctx context.Context, roomIDs []string, interval model.Interval) ([]string, error) {
	if err := interval.Validate(); err != nil {
		return nil, invalidInterval(interval)
	}

	candidates := dedupe(roomIDs)
	if len(candidates) == 0 {
		if s.rooms == nil {
			return nil, apperrors.InvalidInput("At least one room ID is required")
		}
		ids, err := s.rooms.ListActiveIDs(ctx)
		if err != nil {
			return nil, storeFailure("Failed to list rooms", err)
		}
		candidates = ids
	}
	if len(candidates) == 0 {
		return []string{}, nil
	}

	byRoom, err := s.repo.FindActiveByRooms(ctx, candidates, interval)
	if err != nil {
		return nil, storeFailure("Failed to load active reservations", err)
	}

	available := make([]string, 0, len(candidates))
	for _, roomID := range candidates {
		if !anyOverlap(byRoom[roomID], interval) {
			available = append(available, roomID)
		}
	}
	return available, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, storeFailure("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

// List returns every reservation for admins, only the requester's own
// otherwise. Count and page are fetched concurrently.
func (s *reservationService) List(ctx context.Context, requester auth.Requester, limit int, offset int64) ([]*model.Reservation, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		count             int64
		reservations      []*model.Reservation
		errCount, errFind error
		wg                sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		if requester.IsAdmin() {
			count, errCount = s.repo.Count(ctx)
		} else {
			count, errCount = s.repo.CountByOwner(ctx, requester.UserID)
		}
	}()

	go func() {
		defer wg.Done()
		if requester.IsAdmin() {
			reservations, errFind = s.repo.FindAll(ctx, limit, offset)
		} else {
			reservations, errFind = s.repo.FindByOwner(ctx, requester.UserID, limit, offset)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, storeFailure("Failed to count reservations", errCount)
	}
	if errFind != nil {
		return nil, 0, storeFailure("Failed to list reservations", errFind)
	}

	return reservations, count, nil
}

// --- Helpers ---

func (s *reservationService) getForMutation(ctx context.Context, id string, requester auth.Requester) (*model.Reservation, error) {
	reservation, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanModify(reservation.OwnerID, requester) {
		return nil, apperrors.Forbidden("Only the reservation owner or an administrator may modify it")
	}
	return reservation, nil
}

func (s *reservationService) applyDefaults(r *model.Reservation) {
	if r.Status == "" {
		r.Status = model.StatusActive
	}
}

func (s *reservationService) sanitize(r *model.Reservation) {
	r.Title = sanitizer.SanitizeTitle(r.Title)
	r.Description = sanitizer.SanitizeDescription(r.Description)
}

func (s *reservationService) validate(reservation *model.Reservation) error {
	if err := reservation.Interval.Validate(); err != nil {
		return invalidInterval(reservation.Interval)
	}
	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reservationService) mergeUpdates(existing *model.Reservation, updates *model.ReservationUpdate) *model.Reservation {
	merged := *existing

	if updates.RoomID != "" {
		merged.RoomID = updates.RoomID
	}
	if updates.StartTime != nil {
		merged.Interval.Start = *updates.StartTime
	}
	if updates.EndTime != nil {
		merged.Interval.End = *updates.EndTime
	}
	if updates.Title != "" {
		merged.Title = updates.Title
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}

	return &merged
}

// acquireRoomLock serializes reservation attempts per room. Room ids are
// independent conflict domains, so different rooms never contend.
func (s *reservationService) acquireRoomLock(ctx context.Context, roomID string) (string, error) {
	lock := &model.ReservationLock{
		ID:        fmt.Sprintf("room_lock_%s", roomID),
		Owner:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.cfg.LockTTL),
	}

	if err := s.lockRepo.Create(ctx, lock); err != nil {
		if errors.Is(err, reservationerrors.ErrLockHeld) {
			return "", apperrors.SlotUnavailable("This room is currently being reserved by another request. Please try again.")
		}
		return "", storeFailure("Failed to acquire reservation lock", err)
	}

	return lock.ID, nil
}

func (s *reservationService) releaseRoomLock(ctx context.Context, lockID string) {
	if err := s.lockRepo.Delete(ctx, lockID); err != nil {
		// The TTL index reaps it; the room just stays locked a bit longer.
		s.cfg.Log.Warn("Failed to release reservation lock", "lock_id", lockID, "error", err)
	}
}

func (s *reservationService) publish(ctx context.Context, eventType string, reservation *model.Reservation) {
	if err := s.publisher.Publish(ctx, eventType, reservation); err != nil {
		s.cfg.Log.Error("Failed to publish reservation event",
			"event_type", eventType,
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}

func anyOverlap(reservations []*model.Reservation, interval model.Interval) bool {
	for _, reservation := range reservations {
		if reservation.Interval.Overlaps(interval) {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func invalidInterval(interval model.Interval) *apperrors.AppError {
	return apperrors.InvalidInput(fmt.Sprintf("Invalid interval %s: start must be strictly before end", interval.String()))
}

func slotTaken(interval model.Interval, conflictsWith string) *apperrors.AppError {
	return apperrors.SlotUnavailable(fmt.Sprintf("Room is already reserved for %s", interval.String())).
		WithDetails(map[string]any{"conflicts_with": conflictsWith})
}

// storeFailure separates transient store trouble (retryable,
// SERVICE_UNAVAILABLE) from everything else (INTERNAL_ERROR).
func storeFailure(message string, err error) *apperrors.AppError {
	if apperrors.IsAppError(err) {
		return err.(*apperrors.AppError)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Unavailable("reservation store")
	}
	return apperrors.Internal(message, err)
}
