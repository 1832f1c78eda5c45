package repositories

import (
	"context"
	"fmt"
	"time"

	"babcia/internal/database"
	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/types"
	"babcia/internal/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ROOMS_CACHE_KEY    = "collection"
	ROOMS_CACHE_HASH   = "rooms"
	ROOMS_CACHE_EXPIRY = 24 * time.Hour
)

// RoomRepository persists the whole room collection at once
type RoomRepository interface {
	LoadAll(ctx context.Context) ([]models.Room, error)
	SaveAll(ctx context.Context, rooms []models.Room) error
}

type roomRepository struct {
	db  database.DB
	log logger.Logger
}

func NewRoomRepository(db database.DB) RoomRepository {
	return &roomRepository{
		db:  db,
		log: logger.New("roomRepository"),
	}
}

func (r *roomRepository) LoadAll(ctx context.Context) ([]models.Room, error) {
	log := r.log.Function("LoadAll")

	var rooms []models.Room
	found, err := r.collectionCache(ctx).Get(&rooms)
	if err != nil {
		log.Warn("failed to read room collection from cache", "error", err)
	}
	if found {
		return rooms, nil
	}

	var records []models.RoomRecord
	if err := r.db.SQLWithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, log.ErrorWithType(types.ErrStorage, "failed to load rooms", "error", err)
	}

	rooms = make([]models.Room, 0, len(records))
	for _, record := range records {
		room, err := record.Room()
		if err != nil {
			return nil, log.ErrorWithType(types.ErrStorage, "failed to decode room", "roomID", record.ID, "error", err)
		}
		rooms = append(rooms, room)
	}

	if err := r.collectionCache(ctx).WithStruct(rooms).WithTTL(ROOMS_CACHE_EXPIRY).Set(); err != nil {
		log.Warn("failed to cache room collection", "error", err)
	}

	return rooms, nil
}

// SaveAll replaces the stored collection in one transaction: changed rooms
// are upserted, unchanged rooms are skipped by content hash, and rooms no
// longer present are deleted.
func (r *roomRepository) SaveAll(ctx context.Context, rooms []models.Room) error {
	log := r.log.Function("SaveAll")

	err := r.db.SQLWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.RoomRecord
		if err := tx.Select("id", "content_hash").Find(&existing).Error; err != nil {
			return fmt.Errorf("load stored hashes: %w", err)
		}

		storedHashes := make(map[uuid.UUID]string, len(existing))
		for _, record := range existing {
			storedHashes[record.ID] = record.ContentHash
		}

		keep := make([]uuid.UUID, 0, len(rooms))
		for position, room := range rooms {
			keep = append(keep, room.ID)

			record, err := models.NewRoomRecord(room, position)
			if err != nil {
				return err
			}
			record.ContentHash = storedHashes[room.ID]
			if !utils.RefreshContentHash(&record) {
				continue
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(roomUpdateColumns),
			}).Create(&record).Error; err != nil {
				return fmt.Errorf("upsert room %s: %w", room.ID, err)
			}
		}

		deleteQuery := tx.Where("1 = 1")
		if len(keep) > 0 {
			deleteQuery = tx.Where("id NOT IN ?", keep)
		}
		if err := deleteQuery.Delete(&models.RoomRecord{}).Error; err != nil {
			return fmt.Errorf("delete removed rooms: %w", err)
		}
		return nil
	})
	if err != nil {
		if cacheErr := r.collectionCache(ctx).Delete(); cacheErr != nil {
			log.Warn("failed to invalidate room cache", "error", cacheErr)
		}
		return log.ErrorWithType(types.ErrStorage, "failed to save rooms", "error", err, "rooms", len(rooms))
	}

	if err := r.collectionCache(ctx).WithStruct(rooms).WithTTL(ROOMS_CACHE_EXPIRY).Set(); err != nil {
		log.Warn("failed to refresh room cache", "error", err)
		if cacheErr := r.collectionCache(ctx).Delete(); cacheErr != nil {
			log.Warn("failed to invalidate room cache", "error", cacheErr)
		}
	}

	return nil
}

var roomUpdateColumns = []string{
	"updated_at", "position", "name", "persona", "image_source", "camera_id",
	"total_xp", "streak", "next_run_at", "content_hash", "document",
}

func (r *roomRepository) collectionCache(ctx context.Context) *database.CacheBuilder {
	return database.NewCacheBuilder(r.db.Cache.Rooms, ROOMS_CACHE_KEY).
		WithHash(ROOMS_CACHE_HASH).
		WithContext(ctx)
}
