package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"babcia/internal/models"
	"babcia/internal/services"
	"babcia/internal/types"

	"github.com/stretchr/testify/mock"
)

type MockInteractionRepository struct {
	mock.Mock
}

func (m *MockInteractionRepository) Create(ctx context.Context, interaction *models.Interaction) error {
	args := m.Called(ctx, interaction)
	return args.Error(0)
}

func (m *MockInteractionRepository) History(
	ctx context.Context,
	persona models.Persona,
	limit int,
) ([]models.Interaction, error) {
	args := m.Called(ctx, persona, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Interaction), args.Error(1)
}

func (m *MockInteractionRepository) Last(ctx context.Context, persona models.Persona) (*models.Interaction, error) {
	args := m.Called(ctx, persona)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Interaction), args.Error(1)
}

// MemoryRoomRepository is a RoomRepository backed by a slice
type MemoryRoomRepository struct {
	mu      sync.Mutex
	rooms   []models.Room
	Saves   int
	FailAll bool
}

func NewMemoryRoomRepository(rooms ...models.Room) *MemoryRoomRepository {
	return &MemoryRoomRepository{rooms: models.CloneRooms(rooms)}
}

func (r *MemoryRoomRepository) LoadAll(ctx context.Context) ([]models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.CloneRooms(r.rooms), nil
}

func (r *MemoryRoomRepository) SaveAll(ctx context.Context, rooms []models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAll {
		return fmt.Errorf("%w: save rejected", types.ErrStorage)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.Saves++
	r.rooms = models.CloneRooms(rooms)
	return nil
}

func (r *MemoryRoomRepository) Stored() []models.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.CloneRooms(r.rooms)
}

// MemorySettingsRepository keeps the single settings row in memory
type MemorySettingsRepository struct {
	mu       sync.Mutex
	settings *models.Settings
}

func NewMemorySettingsRepository(settings models.Settings) *MemorySettingsRepository {
	return &MemorySettingsRepository{settings: &settings}
}

func (r *MemorySettingsRepository) GetOrSeed(ctx context.Context, defaults models.Settings) (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		seeded := defaults
		r.settings = &seeded
	}
	return *r.settings, nil
}

func (r *MemorySettingsRepository) Save(ctx context.Context, settings *models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := *settings
	r.settings = &saved
	return nil
}

// MemoryImageStore is an ImageStore over a map. FailSave makes Save fail for
// names it returns true for; Age backdates every listed image.
type MemoryImageStore struct {
	mu       sync.Mutex
	images   map[string][]byte
	FailSave func(name string) bool
	Age      time.Duration
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{images: make(map[string][]byte)}
}

func (s *MemoryImageStore) Save(ctx context.Context, name string, data []byte) error {
	if !services.ValidImageName(name) {
		return fmt.Errorf("%w: invalid image name %q", types.ErrValidation, name)
	}
	if s.FailSave != nil && s.FailSave(name) {
		return fmt.Errorf("%w: disk full", types.ErrStorage)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[name] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryImageStore) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.images[name]
	if !ok {
		return nil, fmt.Errorf("%w: image %s", types.ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryImageStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, name)
	return nil
}

func (s *MemoryImageStore) List(ctx context.Context) ([]services.StoredImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	images := make([]services.StoredImage, 0, len(s.images))
	for name, data := range s.images {
		images = append(images, services.StoredImage{Name: name, Size: int64(len(data)), ModifiedAt: time.Now().Add(-s.Age)})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

func (s *MemoryImageStore) PurgeTemp(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

// Names lists stored images whose name starts with prefix
func (s *MemoryImageStore) Names(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.images {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
