// Package state owns the in-memory room collection. A single goroutine
// applies every read-modify-write in turn, persists the result, and rolls the
// change back when persistence fails.
package state

import (
	"context"
	"fmt"
	"sync"

	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/repositories"
	"babcia/internal/types"

	"github.com/google/uuid"
)

var ErrClosed = fmt.Errorf("%w: room store closed", types.ErrStorage)

type operation func(rooms *[]models.Room)

type Store struct {
	repo     repositories.RoomRepository
	requests chan operation
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
	locksMu  sync.Mutex
	locks    map[uuid.UUID]chan struct{}
	log      logger.Logger
}

// New loads the persisted rooms and starts the owning goroutine
func New(ctx context.Context, repo repositories.RoomRepository) (*Store, error) {
	log := logger.New("roomStore")

	rooms, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, log.Err("failed to load rooms", err)
	}

	s := &Store{
		repo:     repo,
		requests: make(chan operation),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		locks:    make(map[uuid.UUID]chan struct{}),
		log:      log,
	}
	go s.run(rooms)

	log.Info("Room store started", "rooms", len(rooms))
	return s, nil
}

func (s *Store) run(rooms []models.Room) {
	defer close(s.done)
	for {
		select {
		case op := <-s.requests:
			op(&rooms)
		case <-s.quit:
			return
		}
	}
}

// Close stops the owning goroutine and waits for it to exit
func (s *Store) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}

// do hands fn to the owning goroutine and waits until it has run
func (s *Store) do(ctx context.Context, fn operation) error {
	finished := make(chan struct{})
	op := func(rooms *[]models.Room) {
		defer close(finished)
		fn(rooms)
	}

	select {
	case s.requests <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrClosed
	}
	<-finished
	return nil
}

// Snapshot returns a deep copy of every room in display order
func (s *Store) Snapshot(ctx context.Context) ([]models.Room, error) {
	var snapshot []models.Room
	err := s.do(ctx, func(rooms *[]models.Room) {
		snapshot = models.CloneRooms(*rooms)
	})
	return snapshot, err
}

// Get returns a deep copy of one room
func (s *Store) Get(ctx context.Context, roomID uuid.UUID) (models.Room, error) {
	var (
		room  models.Room
		found bool
	)
	err := s.do(ctx, func(rooms *[]models.Room) {
		if i := indexOf(*rooms, roomID); i >= 0 {
			room = (*rooms)[i].Clone()
			found = true
		}
	})
	if err != nil {
		return models.Room{}, err
	}
	if !found {
		return models.Room{}, fmt.Errorf("%w: room %s", types.ErrNotFound, roomID)
	}
	return room, nil
}

// Update applies fn to a copy of the collection and persists the result. The
// in-memory collection only changes once the save succeeds.
func (s *Store) Update(ctx context.Context, fn func(rooms []models.Room) ([]models.Room, error)) error {
	log := s.log.Function("Update")

	var opErr error
	err := s.do(ctx, func(rooms *[]models.Room) {
		next, err := fn(models.CloneRooms(*rooms))
		if err != nil {
			opErr = err
			return
		}
		if err := s.repo.SaveAll(ctx, next); err != nil {
			opErr = log.Err("failed to persist rooms, change rolled back", err)
			return
		}
		*rooms = next
	})
	if err != nil {
		return err
	}
	return opErr
}

// UpdateRoom applies fn to a copy of one room and commits it
func (s *Store) UpdateRoom(ctx context.Context, roomID uuid.UUID, fn func(room *models.Room) error) (models.Room, error) {
	var updated models.Room
	err := s.Update(ctx, func(rooms []models.Room) ([]models.Room, error) {
		i := indexOf(rooms, roomID)
		if i < 0 {
			return nil, fmt.Errorf("%w: room %s", types.ErrNotFound, roomID)
		}
		if err := fn(&rooms[i]); err != nil {
			return nil, err
		}
		updated = rooms[i].Clone()
		return rooms, nil
	})
	return updated, err
}

// Commit replaces a room with a version computed outside the store. Rooms
// deleted in the meantime are not resurrected.
func (s *Store) Commit(ctx context.Context, room models.Room) error {
	_, err := s.UpdateRoom(ctx, room.ID, func(current *models.Room) error {
		*current = room.Clone()
		return nil
	})
	return err
}

// Lock takes the room's mutual-exclusion slot, waiting until it is free or
// ctx is done
func (s *Store) Lock(ctx context.Context, roomID uuid.UUID) (func(), error) {
	slot := s.slot(roomID)
	select {
	case slot <- struct{}{}:
		return releaser(slot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryLock takes the room's slot without waiting
func (s *Store) TryLock(roomID uuid.UUID) (func(), error) {
	slot := s.slot(roomID)
	select {
	case slot <- struct{}{}:
		return releaser(slot), nil
	default:
		return nil, fmt.Errorf("%w: room %s", types.ErrRoomBusy, roomID)
	}
}

func (s *Store) slot(roomID uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	slot, ok := s.locks[roomID]
	if !ok {
		slot = make(chan struct{}, 1)
		s.locks[roomID] = slot
	}
	return slot
}

func releaser(slot chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}
}

func indexOf(rooms []models.Room, roomID uuid.UUID) int {
	for i := range rooms {
		if rooms[i].ID == roomID {
			return i
		}
	}
	return -1
}
