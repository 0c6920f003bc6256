package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/telepost/dicom-transfer/internal/models"
)

// Entry is one registered series: the files parsed at import time plus the
// owner who may later send them.
type Entry struct {
	SessionID string                  `json:"session_id"`
	UserID    uuid.UUID               `json:"user_id"`
	Files     []models.MetadataRecord `json:"files"`
}

// Index hands parsed series from an import over to later send requests
// without re-uploading the files. Entries are written once at import time,
// read-only afterwards, and expire after the configured TTL. Keys are
// unique per session so concurrent imports never collide.
type Index struct {
	store Store
	ttl   time.Duration
}

// NewIndex creates a session index on the given store.
func NewIndex(store Store, ttl time.Duration) *Index {
	return &Index{store: store, ttl: ttl}
}

// SeriesID builds the public handoff key for one series of one session.
func SeriesID(sessionID, seriesKey string) string {
	return fmt.Sprintf("%s_%s", sessionID, seriesKey)
}

// Register stores one series under its composite key and returns that key.
func (i *Index) Register(ctx context.Context, sessionID string, userID uuid.UUID, seriesKey string, files []models.MetadataRecord) (string, error) {
	id := SeriesID(sessionID, seriesKey)
	entry := Entry{
		SessionID: sessionID,
		UserID:    userID,
		Files:     files,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode session entry: %w", err)
	}
	if err := i.store.Set(ctx, storeKey(id), data, i.ttl); err != nil {
		return "", err
	}
	return id, nil
}

// Lookup resolves a series key to its registered entry.
func (i *Index) Lookup(ctx context.Context, seriesID string) (*Entry, error) {
	data, err := i.store.Get(ctx, storeKey(seriesID))
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode session entry: %w", err)
	}
	return &entry, nil
}

// Evict drops a series from the index.
func (i *Index) Evict(ctx context.Context, seriesID string) error {
	return i.store.Delete(ctx, storeKey(seriesID))
}
