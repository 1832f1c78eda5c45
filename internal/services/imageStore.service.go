package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"babcia/internal/logger"
	"babcia/internal/types"

	"github.com/google/uuid"
)

const tempImagePattern = ".tmp-*"

// ImageStore keeps raw image bytes under generated file names
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]StoredImage, error)
	PurgeTemp(ctx context.Context, olderThan time.Duration) (int, error)
}

type StoredImage struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type ImageKind string

const (
	ImageKindCapture ImageKind = "capture"
	ImageKindVision  ImageKind = "vision"
	ImageKindVerify  ImageKind = "verify"
)

// NewImageName generates a unique file name for a room image
func NewImageName(kind ImageKind, roomID uuid.UUID) string {
	ext := "jpg"
	if kind == ImageKindVision {
		ext = "png"
	}
	return fmt.Sprintf("%s_%s_%s.%s", kind, roomID, uuid.New(), ext)
}

type DiskImageStore struct {
	dir string
	log logger.Logger
}

func NewDiskImageStore(dir string) (*DiskImageStore, error) {
	log := logger.New("DiskImageStore")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, log.ErrorWithType(types.ErrStorage, "failed to create image directory", "dir", dir, "error", err)
	}

	return &DiskImageStore{dir: dir, log: log}, nil
}

// Save writes through a temp file and a rename so readers never observe a
// partially written image
func (s *DiskImageStore) Save(ctx context.Context, name string, data []byte) error {
	log := s.log.Function("Save")

	path, err := s.resolve(name)
	if err != nil {
		return log.ErrorWithType(types.ErrValidation, "invalid image name", "name", name)
	}
	if len(data) == 0 {
		return log.ErrorWithType(types.ErrImageProcessing, "refusing to store empty image", "name", name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempImagePattern)
	if err != nil {
		return log.ErrorWithType(types.ErrStorage, "failed to create temp file", "error", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return log.ErrorWithType(types.ErrStorage, "failed to write image", "name", name, "error", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return log.ErrorWithType(types.ErrStorage, "failed to sync image", "name", name, "error", err)
	}
	if err := tmp.Close(); err != nil {
		return log.ErrorWithType(types.ErrStorage, "failed to close image", "name", name, "error", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return log.ErrorWithType(types.ErrStorage, "failed to move image into place", "name", name, "error", err)
	}
	tmpName = ""

	log.Debug("Image stored", "name", name, "bytes", len(data))
	return nil
}

func (s *DiskImageStore) Load(ctx context.Context, name string) ([]byte, error) {
	log := s.log.Function("Load")

	path, err := s.resolve(name)
	if err != nil {
		return nil, log.ErrorWithType(types.ErrValidation, "invalid image name", "name", name)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: image %s", types.ErrNotFound, name)
	}
	if err != nil {
		return nil, log.ErrorWithType(types.ErrStorage, "failed to read image", "name", name, "error", err)
	}
	return data, nil
}

// Delete removes an image. Missing images are not an error.
func (s *DiskImageStore) Delete(ctx context.Context, name string) error {
	log := s.log.Function("Delete")

	path, err := s.resolve(name)
	if err != nil {
		return log.ErrorWithType(types.ErrValidation, "invalid image name", "name", name)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return log.ErrorWithType(types.ErrStorage, "failed to delete image", "name", name, "error", err)
	}
	return nil
}

func (s *DiskImageStore) List(ctx context.Context) ([]StoredImage, error) {
	log := s.log.Function("List")

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, log.ErrorWithType(types.ErrStorage, "failed to read image directory", "dir", s.dir, "error", err)
	}

	images := make([]StoredImage, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || isTempImage(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		images = append(images, StoredImage{
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return images, nil
}

// PurgeTemp removes temp files older than olderThan, left behind by writes
// that never reached the rename
func (s *DiskImageStore) PurgeTemp(ctx context.Context, olderThan time.Duration) (int, error) {
	log := s.log.Function("PurgeTemp")

	matches, err := filepath.Glob(filepath.Join(s.dir, tempImagePattern))
	if err != nil {
		return 0, log.ErrorWithType(types.ErrStorage, "failed to list temp files", "error", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed to remove temp file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func isTempImage(name string) bool {
	return strings.HasPrefix(name, ".tmp-")
}

func (s *DiskImageStore) resolve(name string) (string, error) {
	if !ValidImageName(name) {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// ValidImageName accepts plain file names only, so a name can never reach
// outside the image directory
func ValidImageName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
