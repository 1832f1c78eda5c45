package database

import (
	"context"
	"fmt"
	"time"

	"babcia/config"

	"github.com/valkey-io/valkey-go"
)

// Valkey database indexes, one per cache category
const (
	// GENERAL_CACHE_INDEX (DB 0) - health checks and miscellaneous values
	GENERAL_CACHE_INDEX = iota

	// EVENTS_CACHE_INDEX (DB 1) - pub/sub for reminders and room notifications
	EVENTS_CACHE_INDEX

	// CLIENT_API_CACHE_INDEX (DB 2) - responses from the camera bridge
	CLIENT_API_CACHE_INDEX

	// ROOMS_CACHE_INDEX (DB 3) - the persisted room collection
	ROOMS_CACHE_INDEX
)

func (s *DB) initializeCacheDB(config config.Config) error {
	log := s.log.Function("initializeCacheDB")

	address := config.DatabaseCacheAddress
	port := config.DatabaseCachePort
	if address == "" {
		log.Info("No cache address configured, running without valkey")
		return nil
	}
	if port == 0 {
		return log.Error("failed to initialize cache database", "reason", "port is empty")
	}

	log.Info("initializing cache database", "address", address, "port", port)

	initAddress := []string{fmt.Sprintf("%s:%d", address, port)}
	clients := []struct {
		target *CacheClient
		index  int
		name   string
	}{
		{&s.Cache.General, GENERAL_CACHE_INDEX, "general"},
		{&s.Cache.Events, EVENTS_CACHE_INDEX, "events"},
		{&s.Cache.ClientAPI, CLIENT_API_CACHE_INDEX, "client api"},
		{&s.Cache.Rooms, ROOMS_CACHE_INDEX, "rooms"},
	}

	for _, c := range clients {
		client, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: initAddress,
			SelectDB:    c.index,
		})
		if err != nil {
			return log.Err("failed to create valkey client", err, "cache", c.name)
		}
		*c.target = client
	}

	return nil
}

// FlushCache clears one cache index. Used by the operator CLI after manual
// edits to the database.
func (s *DB) FlushCache(ctx context.Context, index int) error {
	log := s.log.Function("FlushCache")

	var client CacheClient
	switch index {
	case GENERAL_CACHE_INDEX:
		client = s.Cache.General
	case EVENTS_CACHE_INDEX:
		client = s.Cache.Events
	case CLIENT_API_CACHE_INDEX:
		client = s.Cache.ClientAPI
	case ROOMS_CACHE_INDEX:
		client = s.Cache.Rooms
	default:
		return log.Error("Invalid cache database index", "index", index)
	}

	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Flushdb().Build()).Error(); err != nil {
		return log.Err("Failed to clear cache database", err, "index", index)
	}

	log.Info("Successfully cleared cache database", "index", index)
	return nil
}
