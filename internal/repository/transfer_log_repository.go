package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/telepost/dicom-transfer/internal/database"
	"github.com/telepost/dicom-transfer/internal/models"
)

// TransferLogRepository handles transfer log database operations
type TransferLogRepository struct{}

// NewTransferLogRepository creates a new transfer log repository
func NewTransferLogRepository() *TransferLogRepository {
	return &TransferLogRepository{}
}

// Create creates a new transfer log entry
func (r *TransferLogRepository) Create(ctx context.Context, entry *models.TransferLog) error {
	if err := database.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create transfer log: %w", err)
	}
	return nil
}

// GetByID retrieves a transfer log entry by ID
func (r *TransferLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TransferLog, error) {
	var entry models.TransferLog
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to get transfer log: %w", err)
	}
	return &entry, nil
}

// Update persists changes to a transfer log entry
func (r *TransferLogRepository) Update(ctx context.Context, entry *models.TransferLog) error {
	if err := database.DB.WithContext(ctx).Save(entry).Error; err != nil {
		return fmt.Errorf("failed to update transfer log: %w", err)
	}
	return nil
}

// SendStatusQuery filters the status endpoint's ledger lookup.
type SendStatusQuery struct {
	UserID    uuid.UUID
	SeriesIDs []string
	// Since applies only when no series IDs are given.
	Since time.Time
	Limit int
}

// ListSendStatuses returns the caller's send entries, newest first. With
// series IDs the query filters on them; without, it falls back to the
// Since window.
func (r *TransferLogRepository) ListSendStatuses(ctx context.Context, q SendStatusQuery) ([]models.TransferLog, error) {
	query := database.DB.WithContext(ctx).
		Preload("Destination").
		Where("user_id = ? AND action = ?", q.UserID, models.ActionSend).
		Order("created_at DESC")

	if len(q.SeriesIDs) > 0 {
		query = query.Where("details->>'series_id' IN ?", q.SeriesIDs)
	} else {
		query = query.Where("created_at >= ?", q.Since)
	}

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var entries []models.TransferLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list send statuses: %w", err)
	}
	return entries, nil
}

// AuditQuery filters the audit listing.
type AuditQuery struct {
	// UserID scopes the listing; zero value with Admin true lists all users.
	UserID uuid.UUID
	Admin  bool
	Status string
	Action string
	Limit  int
	Offset int
}

// ListAudit returns transfer log entries for the audit view.
func (r *TransferLogRepository) ListAudit(ctx context.Context, q AuditQuery) ([]models.TransferLog, error) {
	query := database.DB.WithContext(ctx).
		Preload("Destination").
		Order("created_at DESC")

	if !q.Admin {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var entries []models.TransferLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list transfer logs: %w", err)
	}
	return entries, nil
}

// FailStale terminates pending/sending entries older than the cutoff.
// Transfers interrupted by a crash or restart would otherwise stay
// non-terminal forever; this keeps the completed-iff-terminal invariant
// true across process lifetimes.
func (r *TransferLogRepository) FailStale(ctx context.Context, olderThan time.Time, message string) (int64, error) {
	now := time.Now().UTC()
	res := database.DB.WithContext(ctx).
		Model(&models.TransferLog{}).
		Where("status IN ? AND created_at < ?", []models.TransferStatus{models.StatusPending, models.StatusSending}, olderThan).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"completed_at":  now,
			"error_message": message,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reconcile stale transfer logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
