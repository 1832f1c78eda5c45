package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"babcia/internal/models"
	"babcia/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memoryRepo struct {
	mu      sync.Mutex
	rooms   []models.Room
	saves   int
	failing bool
}

func (r *memoryRepo) LoadAll(ctx context.Context) ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.CloneRooms(r.rooms), nil
}

func (r *memoryRepo) SaveAll(ctx context.Context, rooms []models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return types.ErrStorage
	}
	r.saves++
	r.rooms = models.CloneRooms(rooms)
	return nil
}

func newTestStore(t *testing.T, rooms ...models.Room) (*Store, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{rooms: rooms}
	store, err := New(context.Background(), repo)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, repo
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	room := models.NewRoom("Kitchen", models.PersonaClassic, models.ImageSourceCamera, nil)
	room.Tasks = []models.CleaningTask{models.NewCleaningTask("Wipe the counter")}
	store, _ := newTestStore(t, room)

	snapshot, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	snapshot[0].Tasks[0].Title = "changed"
	snapshot[0].Name = "changed"

	again, err := store.Get(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", again.Name)
	assert.Equal(t, "Wipe the counter", again.Tasks[0].Title)

	_, err = store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestStore_UpdateRoomPersists(t *testing.T) {
	room := models.NewRoom("Kitchen", models.PersonaClassic, models.ImageSourceCamera, nil)
	store, repo := newTestStore(t, room)

	updated, err := store.UpdateRoom(context.Background(), room.ID, func(r *models.Room) error {
		r.GrantXP(30)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.TotalXP)
	assert.Equal(t, 1, repo.saves)
	assert.Equal(t, 30, repo.rooms[0].TotalXP)
}

func TestStore_RollbackOnFailure(t *testing.T) {
	room := models.NewRoom("Kitchen", models.PersonaClassic, models.ImageSourceCamera, nil)
	store, repo := newTestStore(t, room)

	repo.failing = true
	_, err := store.UpdateRoom(context.Background(), room.ID, func(r *models.Room) error {
		r.GrantXP(50)
		return nil
	})
	assert.ErrorIs(t, err, types.ErrStorage)

	current, err := store.Get(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.TotalXP, "failed save must not change memory")

	validation := errors.New("rejected")
	repo.failing = false
	_, err = store.UpdateRoom(context.Background(), room.ID, func(r *models.Room) error {
		r.GrantXP(50)
		return validation
	})
	assert.ErrorIs(t, err, validation)
	assert.Equal(t, 0, repo.saves)
}

func TestStore_CommitDoesNotResurrect(t *testing.T) {
	room := models.NewRoom("Kitchen", models.PersonaClassic, models.ImageSourceCamera, nil)
	store, _ := newTestStore(t, room)

	require.NoError(t, store.Update(context.Background(), func(rooms []models.Room) ([]models.Room, error) {
		return rooms[:0], nil
	}))

	err := store.Commit(context.Background(), room)
	assert.ErrorIs(t, err, types.ErrNotFound)

	rooms, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	first := models.NewRoom("Kitchen", models.PersonaClassic, models.ImageSourceCamera, nil)
	second := models.NewRoom("Bath", models.PersonaClassic, models.ImageSourceCamera, nil)
	store, repo := newTestStore(t, first, second)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := first.ID
			if i%2 == 1 {
				id = second.ID
			}
			_, err := store.UpdateRoom(context.Background(), id, func(r *models.Room) error {
				r.GrantXP(1)
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rooms, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, rooms[0].TotalXP)
	assert.Equal(t, 25, rooms[1].TotalXP)
	assert.Equal(t, 50, repo.saves)
}

func TestStore_RoomLocks(t *testing.T) {
	store, _ := newTestStore(t)
	roomID := uuid.New()

	unlock, err := store.TryLock(roomID)
	require.NoError(t, err)

	_, err = store.TryLock(roomID)
	assert.ErrorIs(t, err, types.ErrRoomBusy)

	other, err := store.TryLock(uuid.New())
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = store.Lock(ctx, roomID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan func())
	go func() {
		release, err := store.Lock(context.Background(), roomID)
		if err == nil {
			acquired <- release
		}
	}()

	unlock()
	unlock()

	select {
	case release := <-acquired:
		release()
	case <-time.After(time.Second):
		t.Fatal("waiting Lock was not granted after unlock")
	}
}

func TestStore_Closed(t *testing.T) {
	repo := &memoryRepo{}
	store, err := New(context.Background(), repo)
	require.NoError(t, err)
	store.Close()
	store.Close()

	_, err = store.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, types.ErrStorage)
}
