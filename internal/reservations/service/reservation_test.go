package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"roombook/internal/events"
	reservationerrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/validator"
	"roombook/pkg/auth"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

const (
	roomA = "64b1a0000000000000000a01"
	roomB = "64b1a0000000000000000b02"
	roomC = "64b1a0000000000000000c03"

	reservationID      = "64b1a0000000000000000f01"
	otherReservationID = "64b1a0000000000000000f02"
)

var (
	ownerRequester = auth.Requester{UserID: "user-1", Role: auth.RoleUser}
	otherRequester = auth.Requester{UserID: "user-2", Role: auth.RoleUser}
	adminRequester = auth.Requester{UserID: "admin-1", Role: auth.RoleAdmin}
)

// Mock repository for testing
type mockReservationRepo struct {
	createFunc            func(ctx context.Context, r *model.Reservation) error
	findByIDFunc          func(ctx context.Context, id string) (*model.Reservation, error)
	findAllFunc           func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error)
	findByOwnerFunc       func(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, error)
	findActiveByRoomFunc  func(ctx context.Context, roomID string, window *model.Interval) ([]*model.Reservation, error)
	findActiveByRoomsFunc func(ctx context.Context, roomIDs []string, window model.Interval) (map[string][]*model.Reservation, error)
	updateFunc            func(ctx context.Context, id string, r *model.Reservation) error
	cancelFunc            func(ctx context.Context, id string) error
	deleteFunc            func(ctx context.Context, id string) error
	countFunc             func(ctx context.Context) (int64, error)
	countByOwnerFunc      func(ctx context.Context, ownerID string) (int64, error)
}

func (m *mockReservationRepo) Create(ctx context.Context, r *model.Reservation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	r.ID = reservationID
	return nil
}

func (m *mockReservationRepo) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reservationerrors.ErrNotFound
}

func (m *mockReservationRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockReservationRepo) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findByOwnerFunc != nil {
		return m.findByOwnerFunc(ctx, ownerID, limit, offset)
	}
	return nil, nil
}

func (m *mockReservationRepo) FindActiveByRoom(ctx context.Context, roomID string, window *model.Interval) ([]*model.Reservation, error) {
	if m.findActiveByRoomFunc != nil {
		return m.findActiveByRoomFunc(ctx, roomID, window)
	}
	return nil, nil
}

func (m *mockReservationRepo) FindActiveByRooms(ctx context.Context, roomIDs []string, window model.Interval) (map[string][]*model.Reservation, error) {
	if m.findActiveByRoomsFunc != nil {
		return m.findActiveByRoomsFunc(ctx, roomIDs, window)
	}
	return map[string][]*model.Reservation{}, nil
}

func (m *mockReservationRepo) Update(ctx context.Context, id string, r *model.Reservation) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, r)
	}
	return nil
}

func (m *mockReservationRepo) Cancel(ctx context.Context, id string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil
}

func (m *mockReservationRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockReservationRepo) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockReservationRepo) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	if m.countByOwnerFunc != nil {
		return m.countByOwnerFunc(ctx, ownerID)
	}
	return 0, nil
}

func (m *mockReservationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	var sessCtx mongo.SessionContext
	return fn(sessCtx)
}

type mockLockRepo struct {
	createFunc func(ctx context.Context, lock *model.ReservationLock) error

	acquired []string
	released []string
}

func (m *mockLockRepo) Create(ctx context.Context, lock *model.ReservationLock) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	m.acquired = append(m.acquired, lock.ID)
	return nil
}

func (m *mockLockRepo) Delete(ctx context.Context, lockID string) error {
	m.released = append(m.released, lockID)
	return nil
}

type mockPublisher struct {
	events []string
}

func (m *mockPublisher) Publish(ctx context.Context, eventType string, r *model.Reservation) error {
	m.events = append(m.events, eventType)
	return nil
}

type stubRoomLister struct {
	ids []string
	err error
}

func (s *stubRoomLister) ListActiveIDs(ctx context.Context) ([]string, error) {
	return s.ids, s.err
}

func testConfig() *config.Config {
	return &config.Config{
		LockTTL: time.Second,
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
	}
}

func newTestService(repo *mockReservationRepo, locks *mockLockRepo, rooms RoomLister, pub events.Publisher) ReservationService {
	cfg := testConfig()
	if pub == nil {
		pub = events.NewNoopPublisher()
	}
	return NewReservationService(repo, locks, rooms, validator.NewReservationValidator(cfg.Log), pub, cfg)
}

func slot(t *testing.T, start, end string) model.Interval {
	t.Helper()
	day := "2026-03-10T"
	s, err := time.Parse(time.RFC3339, day+start+":00Z")
	if err != nil {
		t.Fatal(err)
	}
	e, err := time.Parse(time.RFC3339, day+end+":00Z")
	if err != nil {
		t.Fatal(err)
	}
	return model.Interval{Start: s, End: e}
}

func activeReservation(t *testing.T, id, roomID, start, end string) *model.Reservation {
	t.Helper()
	return &model.Reservation{
		ID:       id,
		RoomID:   roomID,
		OwnerID:  ownerRequester.UserID,
		Interval: slot(t, start, end),
		Title:    "Team sync",
		Status:   model.StatusActive,
	}
}

func assertAppCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected *apperrors.AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

func TestCheckConflict(t *testing.T) {
	// One active booking on roomA, 10:00-11:00.
	existing := activeReservation(t, otherReservationID, roomA, "10:00", "11:00")
	repo := &mockReservationRepo{
		findActiveByRoomFunc: func(ctx context.Context, roomID string, window *model.Interval) ([]*model.Reservation, error) {
			if roomID == roomA {
				return []*model.Reservation{existing}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(repo, &mockLockRepo{}, nil, nil)

	tests := []struct {
		name          string
		roomID        string
		interval      model.Interval
		excludeID     string
		wantConflict  bool
		conflictsWith string
	}{
		{
			name:         "empty room is free",
			roomID:       roomB,
			interval:     slot(t, "10:00", "11:00"),
			wantConflict: false,
		},
		{
			name:          "overlapping request conflicts",
			roomID:        roomA,
			interval:      slot(t, "10:30", "11:30"),
			wantConflict:  true,
			conflictsWith: otherReservationID,
		},
		{
			name:         "back to back after is free",
			roomID:       roomA,
			interval:     slot(t, "11:00", "12:00"),
			wantConflict: false,
		},
		{
			name:         "back to back before is free",
			roomID:       roomA,
			interval:     slot(t, "09:00", "10:00"),
			wantConflict: false,
		},
		{
			name:         "own reservation is excluded",
			roomID:       roomA,
			interval:     slot(t, "10:00", "11:00"),
			excludeID:    otherReservationID,
			wantConflict: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.CheckConflict(context.Background(), tt.roomID, tt.interval, tt.excludeID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Conflict != tt.wantConflict {
				t.Errorf("Conflict = %v, want %v", result.Conflict, tt.wantConflict)
			}
			if result.ConflictsWith != tt.conflictsWith {
				t.Errorf("ConflictsWith = %q, want %q", result.ConflictsWith, tt.conflictsWith)
			}
		})
	}
}

func TestCheckConflict_InvalidInput(t *testing.T) {
	svc := newTestService(&mockReservationRepo{}, &mockLockRepo{}, nil, nil)

	t.Run("inverted interval", func(t *testing.T) {
		_, err := svc.CheckConflict(context.Background(), roomA, model.Interval{
			Start: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		}, "")
		assertAppCode(t, err, apperrors.CodeInvalidInput)
	})

	t.Run("empty room id", func(t *testing.T) {
		_, err := svc.CheckConflict(context.Background(), "", slot(t, "10:00", "11:00"), "")
		assertAppCode(t, err, apperrors.CodeInvalidInput)
	})
}

func TestCheckConflict_StoreErrors(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{
			name:     "timeout maps to service unavailable",
			repoErr:  context.DeadlineExceeded,
			wantCode: apperrors.CodeUnavailable,
		},
		{
			name:     "unknown failure maps to internal",
			repoErr:  errors.New("connection reset"),
			wantCode: apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockReservationRepo{
				findActiveByRoomFunc: func(ctx context.Context, roomID string, window *model.Interval) ([]*model.Reservation, error) {
					return nil, tt.repoErr
				},
			}
			svc := newTestService(repo, &mockLockRepo{}, nil, nil)

			_, err := svc.CheckConflict(context.Background(), roomA, slot(t, "10:00", "11:00"), "")
			assertAppCode(t, err, tt.wantCode)
		})
	}
}

func TestReserve_Success(t *testing.T) {
	var created *model.Reservation
	repo := &mockReservationRepo{
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			r.ID = reservationID
			created = r
			return nil
		},
	}
	locks := &mockLockRepo{}
	pub := &mockPublisher{}
	svc := newTestService(repo, locks, nil, pub)

	reservation := &model.Reservation{
		RoomID:   roomA,
		Interval: slot(t, "10:00", "11:00"),
		Title:    "Design review",
	}
	if err := svc.Reserve(context.Background(), reservation, ownerRequester); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created == nil {
		t.Fatal("expected repository create to be called")
	}
	if created.OwnerID != ownerRequester.UserID {
		t.Errorf("OwnerID = %q, want requester id %q", created.OwnerID, ownerRequester.UserID)
	}
	if created.Status != model.StatusActive {
		t.Errorf("Status = %q, want %q", created.Status, model.StatusActive)
	}
	if len(locks.acquired) != 1 || len(locks.released) != 1 {
		t.Errorf("lock acquired %d times, released %d times, want 1 and 1", len(locks.acquired), len(locks.released))
	}
	if len(pub.events) != 1 || pub.events[0] != events.TypeReservationCreated {
		t.Errorf("published events = %v, want [%s]", pub.events, events.TypeReservationCreated)
	}
}

func TestReserve_Conflict(t *testing.T) {
	existing := activeReservation(t, otherReservationID, roomA, "10:00", "11:00")
	createCalled := false
	repo := &mockReservationRepo{
		findActiveByRoomFunc: func(ctx context.Context, roomID string, window *model.Interval) ([]*model.Reservation, error) {
			return []*model.Reservation{existing}, nil
		},
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			createCalled = true
			return nil
		},
	}
	locks := &mockLockRepo{}
	pub := &mockPublisher{}
	svc := newTestService(repo, locks, nil, pub)

	err := svc.Reserve(context.Background(), &model.Reservation{
		RoomID:   roomA,
		Interval: slot(t, "10:30", "11:30"),
		Title:    "Conflicting meeting",
	}, ownerRequester)

	appErr := assertAppCode(t, err, apperrors.CodeSlotUnavailable)
	if appErr.Details["conflicts_with"] != otherReservationID {
		t.Errorf("conflicts_with = %v, want %s", appErr.Details["conflicts_with"], otherReservationID)
	}
	if createCalled {
		t.Error("create must not run when the slot conflicts")
	}
	if len(locks.released) != 1 {
		t.Error("lock must be released after a conflict")
	}
	if len(pub.events) != 0 {
		t.Errorf("no event should be published on conflict, got %v", pub.events)
	}
}

func TestReserve_LockHeld(t *testing.T) {
	locks := &mockLockRepo{
		createFunc: func(ctx context.Context, lock *model.ReservationLock) error {
			return reservationerrors.ErrLockHeld
		},
	}
	svc := newTestService(&mockReservationRepo{}, locks, nil, nil)

	err := svc.Reserve(context.Background(), &model.Reservation{
		RoomID:   roomA,
		Interval: slot(t, "10:00", "11:00"),
		Title:    "Racing meeting",
	}, ownerRequester)

	assertAppCode(t, err, apperrors.CodeSlotUnavailable)
}

func TestReserve_InvalidInput(t *testing.T) {
	locks := &mockLockRepo{}
	svc := newTestService(&mockReservationRepo{}, locks, nil, nil)

	tests := []struct {
		name        string
		reservation *model.Reservation
		wantCode    string
	}{
		{
			name: "inverted interval",
			reservation: &model.Reservation{
				RoomID: roomA,
				Interval: model.Interval{
					Start: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
					End:   time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
				},
				Title: "Backwards meeting",
			},
			wantCode: apperrors.CodeInvalidInput,
		},
		{
			name: "missing title",
			reservation: &model.Reservation{
				RoomID:   roomA,
				Interval: slot(t, "10:00", "11:00"),
			},
			wantCode: apperrors.CodeValidation,
		},
		{
			name: "malformed room id",
			reservation: &model.Reservation{
				RoomID:   "not-an-object-id",
				Interval: slot(t, "10:00", "11:00"),
				Title:    "Nowhere meeting",
			},
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Reserve(context.Background(), tt.reservation, ownerRequester)
			assertAppCode(t, err, tt.wantCode)
		})
	}

	if len(locks.acquired) != 0 {
		t.Errorf("no lock should be taken for invalid input, got %d", len(locks.acquired))
	}
}

func TestUpdate_Authorization(t *testing.T) {
	tests := []struct {
		name      string
		requester auth.Requester
		wantCode  string
	}{
		{name: "owner may update", requester: ownerRequester},
		{name: "admin may update", requester: adminRequester},
		{name: "other user is forbidden", requester: otherRequester, wantCode: apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockReservationRepo{
				findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
					return activeReservation(t, reservationID, roomA, "10:00", "11:00"), nil
				},
			}
			svc := newTestService(repo, &mockLockRepo{}, nil, nil)

			updated, err := svc.Update(context.Background(), reservationID, &model.ReservationUpdate{
				Title: "Renamed meeting",
			}, tt.requester)

			if tt.wantCode != "" {
				assertAppCode(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if updated.Title != "Renamed meeting" {
				t.Errorf("Title = %q, want %q", updated.Title, "Renamed meeting")
			}
		})
	}
}

func TestUpdate_ExcludesOwnReservationFromConflictCheck(t *testing.T) {
	// The only overlapping booking is the one being moved.
	own := activeReservation(t, reservationID, roomA, "10:00", "11:00")
	repo := &mockReservationRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return own, nil
		},
		findActiveByRoomFunc: func(ctx context.Context, roomID string, window *model.Interval) ([]*model.Reservation, error) {
			return []*model.Reservation{own}, nil
		},
	}
	svc := newTestService(repo, &mockLockRepo{}, nil, nil)

	newStart := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	newEnd := time.Date(2026, 3, 10, 11, 30, 0, 0, time.UTC)
	updated, err := svc.Update(context.Background(), reservationID, &model.ReservationUpdate{
		StartTime: &newStart,
		EndTime:   &newEnd,
	}, ownerRequester)
	if err != nil {
		t.Fatalf("moving a reservation within its own slot must not conflict with itself: %v", err)
	}
	if !updated.Interval.Start.Equal(newStart) || !updated.Interval.End.Equal(newEnd) {
		t.Errorf("interval = %s, want [%s, %s)", updated.Interval, newStart, newEnd)
	}
}

func TestUpdate_CancelledReservation(t *testing.T) {
	cancelled := activeReservation(t, reservationID, roomA, "10:00", "11:00")
	cancelled.Status = model.StatusCancelled
	repo := &mockReservationRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return cancelled, nil
		},
	}
	svc := newTestService(repo, &mockLockRepo{}, nil, nil)

	_, err := svc.Update(context.Background(), reservationID, &model.ReservationUpdate{Title: "Too late"}, ownerRequester)
	assertAppCode(t, err, apperrors.CodeNotFound)
}

func TestCancel(t *testing.T) {
	t.Run("owner cancels active reservation", func(t *testing.T) {
		cancelledID := ""
		repo := &mockReservationRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
				return activeReservation(t, reservationID, roomA, "10:00", "11:00"), nil
			},
			cancelFunc: func(ctx context.Context, id string) error {
				cancelledID = id
				return nil
			},
		}
		pub := &mockPublisher{}
		svc := newTestService(repo, &mockLockRepo{}, nil, pub)

		if err := svc.Cancel(context.Background(), reservationID, ownerRequester); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cancelledID != reservationID {
			t.Errorf("cancelled id = %q, want %q", cancelledID, reservationID)
		}
		if len(pub.events) != 1 || pub.events[0] != events.TypeReservationCancelled {
			t.Errorf("published events = %v, want [%s]", pub.events, events.TypeReservationCancelled)
		}
	})

	t.Run("second cancel reports not found", func(t *testing.T) {
		cancelled := activeReservation(t, reservationID, roomA, "10:00", "11:00")
		cancelled.Status = model.StatusCancelled
		repo := &mockReservationRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
				return cancelled, nil
			},
		}
		svc := newTestService(repo, &mockLockRepo{}, nil, nil)

		err := svc.Cancel(context.Background(), reservationID, ownerRequester)
		assertAppCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		repo := &mockReservationRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
				return activeReservation(t, reservationID, roomA, "10:00", "11:00"), nil
			},
		}
		svc := newTestService(repo, &mockLockRepo{}, nil, nil)

		err := svc.Cancel(context.Background(), reservationID, otherRequester)
		assertAppCode(t, err, apperrors.CodeForbidden)
	})

	t.Run("unknown id reports not found", func(t *testing.T) {
		svc := newTestService(&mockReservationRepo{}, &mockLockRepo{}, nil, nil)

		err := svc.Cancel(context.Background(), reservationID, ownerRequester)
		assertAppCode(t, err, apperrors.CodeNotFound)
	})
}

func TestCancelledReservationFreesSlot(t *testing.T) {
	// Store contains only a cancelled booking, which FindActiveByRoom already
	// filters out, so the slot reads as free.
	repo := &mockReservationRepo{
		findActiveByRoomFunc: func(ctx context.Context, roomID string, window *model.Interval) ([]*model.Reservation, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo, &mockLockRepo{}, nil, nil)

	result, err := svc.CheckConflict(context.Background(), roomA, slot(t, "10:00", "11:00"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Conflict {
		t.Error("cancelled reservations must not block the slot")
	}
}

func TestList(t *testing.T) {
	all := []*model.Reservation{
		activeReservation(t, reservationID, roomA, "10:00", "11:00"),
		activeReservation(t, otherReservationID, roomB, "12:00", "13:00"),
	}
	repo := &mockReservationRepo{
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
			return all, nil
		},
		findByOwnerFunc: func(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, error) {
			return all[:1], nil
		},
		countFunc: func(ctx context.Context) (int64, error) {
			return 2, nil
		},
		countByOwnerFunc: func(ctx context.Context, ownerID string) (int64, error) {
			return 1, nil
		},
	}
	svc := newTestService(repo, &mockLockRepo{}, nil, nil)

	t.Run("admin sees everything", func(t *testing.T) {
		reservations, total, err := svc.List(context.Background(), adminRequester, 10, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reservations) != 2 || total != 2 {
			t.Errorf("got %d reservations (total %d), want 2 (total 2)", len(reservations), total)
		}
	})

	t.Run("user sees own only", func(t *testing.T) {
		reservations, total, err := svc.List(context.Background(), ownerRequester, 10, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reservations) != 1 || total != 1 {
			t.Errorf("got %d reservations (total %d), want 1 (total 1)", len(reservations), total)
		}
	})
}
