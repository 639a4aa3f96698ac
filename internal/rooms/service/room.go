package service

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	roomerrors "roombook/internal/rooms/errors"
	"roombook/internal/rooms/repository"
	"roombook/internal/rooms/validator"
	"roombook/pkg/auth"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

// RoomService manages the room catalog. Mutations are admin-only; reads are
// open to any authenticated requester.
type RoomService interface {
	Create(ctx context.Context, room *model.Room, requester auth.Requester) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, id string, updates *model.RoomUpdate, requester auth.Requester) (*model.Room, error)
	Delete(ctx context.Context, id string, requester auth.Requester) error
}

type roomService struct {
	repo      repository.RoomRepository
	validator *validator.RoomValidator
	cfg       *config.Config
}

func NewRoomService(repo repository.RoomRepository, validator *validator.RoomValidator, cfg *config.Config) RoomService {
	return &roomService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *roomService) Create(ctx context.Context, room *model.Room, requester auth.Requester) error {
	if !requester.IsAdmin() {
		return apperrors.Forbidden("Only administrators may create rooms")
	}

	room.IsActive = true
	s.sanitize(room)
	if err := s.validator.Validate(room); err != nil {
		s.cfg.Log.Warn("Room validation failed", "error", err)
		return apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, room); err != nil {
		if errors.Is(err, roomerrors.ErrDuplicateName) {
			return apperrors.Conflict("A room with this name already exists")
		}
		return storeFailure("Failed to create room", err)
	}

	s.cfg.Log.Info("Room created", "id", room.ID, "name", room.Name)
	return nil
}

func (s *roomService) GetByID(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, roomerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		if errors.Is(err, roomerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid room ID format")
		}
		return nil, storeFailure("Failed to retrieve room", err)
	}

	return room, nil
}

func (s *roomService) List(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		count             int64
		rooms             []*model.Room
		errCount, errFind error
		wg                sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
	}()

	go func() {
		defer wg.Done()
		rooms, errFind = s.repo.FindAll(ctx, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, storeFailure("Failed to count rooms", errCount)
	}
	if errFind != nil {
		return nil, 0, storeFailure("Failed to list rooms", errFind)
	}

	return rooms, count, nil
}

func (s *roomService) ListActiveIDs(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListActiveIDs(ctx)
	if err != nil {
		return nil, storeFailure("Failed to list active rooms", err)
	}
	return ids, nil
}

func (s *roomService) Update(ctx context.Context, id string, updates *model.RoomUpdate, requester auth.Requester) (*model.Room, error) {
	if !requester.IsAdmin() {
		return nil, apperrors.Forbidden("Only administrators may update rooms")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Room update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validator.Validate(merged); err != nil {
		return nil, apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, roomerrors.ErrDuplicateName) {
			return nil, apperrors.Conflict("A room with this name already exists")
		}
		if errors.Is(err, roomerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		return nil, storeFailure("Failed to update room", err)
	}

	s.cfg.Log.Info("Room updated", "id", id, "name", merged.Name)
	return merged, nil
}

// Delete removes the room document itself. Existing reservations on the room
// are left untouched; the room simply stops appearing in availability queries.
func (s *roomService) Delete(ctx context.Context, id string, requester auth.Requester) error {
	if !requester.IsAdmin() {
		return apperrors.Forbidden("Only administrators may delete rooms")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, roomerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Room", id)
		}
		if errors.Is(err, roomerrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid room ID format")
		}
		return storeFailure("Failed to delete room", err)
	}

	s.cfg.Log.Info("Room deleted", "id", id)
	return nil
}

func (s *roomService) sanitize(room *model.Room) {
	room.Name = sanitizer.SanitizeTitle(room.Name)
	room.Description = sanitizer.SanitizeDescription(room.Description)
	room.Location = sanitizer.SanitizeTitle(room.Location)
}

func (s *roomService) mergeUpdates(existing *model.Room, updates *model.RoomUpdate) *model.Room {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Location != nil {
		merged.Location = *updates.Location
	}
	if updates.Amenities != nil {
		merged.Amenities = *updates.Amenities
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}

	return &merged
}

func storeFailure(message string, err error) *apperrors.AppError {
	if apperrors.IsAppError(err) {
		return err.(*apperrors.AppError)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Unavailable("room store")
	}
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return apperrors.Unavailable("room store")
	}
	return apperrors.Internal(message, err)
}
