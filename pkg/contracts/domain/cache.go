package domain

import (
	"time"
)

// CacheEntryInfo describes one cached dataset payload. It is returned by
// cache status queries and rendered by the cachectl table output.
type CacheEntryInfo struct {
	Year       int       `json:"year" validate:"min=1900"`
	Dataset    Dataset   `json:"dataset" validate:"required"`
	Path       string    `json:"path,omitempty"`
	SizeBytes  int64     `json:"size_bytes" validate:"min=0"`
	ModifiedAt time.Time `json:"modified_at"`
}
