package models

import (
	"time"

	"github.com/google/uuid"
)

// StoredObject describes a blob in object storage
type StoredObject struct {
	Key         string
	Size        int64
	ContentType string
}

type Track struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	CreatedAt   time.Time
	Title       string
	Artist      string
	Album       string
	StorageKey  string
	CoverKey    string // empty if track has no cover
	ContentType string
	SizeBytes   int64
	ContentHash string
}
