package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"babcia/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*DiskImageStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "images")
	store, err := NewDiskImageStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestDiskImageStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, dir := newTestStore(t)

	name := NewImageName(ImageKindCapture, uuid.New())
	require.NoError(t, store.Save(ctx, name, []byte("jpeg bytes")))

	data, err := store.Load(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	require.NoError(t, store.Save(ctx, name, []byte("replaced")))
	data, err = store.Load(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should remain after a save")

	require.NoError(t, store.Delete(ctx, name))
	require.NoError(t, store.Delete(ctx, name))

	_, err = store.Load(ctx, name)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDiskImageStore_RejectsUnsafeNames(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for _, name := range []string{"", ".", "..", "../escape.jpg", "nested/file.jpg", `win\file.jpg`, ".hidden", ".tmp-123"} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Save(ctx, name, []byte("x")), types.ErrValidation)
			_, err := store.Load(ctx, name)
			assert.ErrorIs(t, err, types.ErrValidation)
			assert.ErrorIs(t, store.Delete(ctx, name), types.ErrValidation)
		})
	}

	assert.ErrorIs(t, store.Save(ctx, "empty.jpg", nil), types.ErrImageProcessing)
}

func TestNewImageName(t *testing.T) {
	roomID := uuid.New()

	tests := []struct {
		kind   ImageKind
		prefix string
		suffix string
	}{
		{ImageKindCapture, "capture_" + roomID.String() + "_", ".jpg"},
		{ImageKindVerify, "verify_" + roomID.String() + "_", ".jpg"},
		{ImageKindVision, "vision_" + roomID.String() + "_", ".png"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			name := NewImageName(tt.kind, roomID)
			assert.True(t, strings.HasPrefix(name, tt.prefix), name)
			assert.True(t, strings.HasSuffix(name, tt.suffix), name)
			assert.True(t, ValidImageName(name))
			assert.NotEqual(t, name, NewImageName(tt.kind, roomID))
		})
	}
}

func TestFileCleanupService_CleanupOrphans(t *testing.T) {
	ctx := context.Background()
	store, dir := newTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	write := func(name string, modified time.Time) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
		require.NoError(t, os.Chtimes(path, modified, modified))
	}

	write("kept.jpg", old)
	write("orphan.jpg", old)
	write("fresh-orphan.jpg", time.Now())
	write(".tmp-stale", old)
	write(".tmp-active", time.Now())

	cleanup := NewFileCleanupService(store)
	result, err := cleanup.CleanupOrphans(ctx, map[string]bool{"kept.jpg": true})
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Scanned: 3, Removed: 1, TempRemoved: 1}, result)

	remaining, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(remaining))
	for _, entry := range remaining {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"kept.jpg", "fresh-orphan.jpg", ".tmp-active"}, names)
}
