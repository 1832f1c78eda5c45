package services

import "time"

// Cache hash patterns
const (
	CAMERAS_CACHE_HASH = "ha_cameras"
)

// Cache lifetimes
const (
	CamerasCacheTTL = 5 * time.Minute
)
