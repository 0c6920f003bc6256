package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/telepost/dicom-transfer/internal/database"
	"github.com/telepost/dicom-transfer/internal/models"
)

// DestinationRepository handles destination database operations
type DestinationRepository struct{}

// NewDestinationRepository creates a new destination repository
func NewDestinationRepository() *DestinationRepository {
	return &DestinationRepository{}
}

// Create creates a new destination
func (r *DestinationRepository) Create(ctx context.Context, dest *models.Destination) error {
	if err := database.DB.WithContext(ctx).Create(dest).Error; err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	return nil
}

// GetByID retrieves a destination by ID
func (r *DestinationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	var dest models.Destination
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&dest).Error; err != nil {
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}
	return &dest, nil
}

// GetEnabledByID retrieves a destination only if it exists and is enabled
func (r *DestinationRepository) GetEnabledByID(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	var dest models.Destination
	if err := database.DB.WithContext(ctx).
		Where("id = ? AND enabled = ?", id, true).
		First(&dest).Error; err != nil {
		return nil, fmt.Errorf("failed to get enabled destination: %w", err)
	}
	return &dest, nil
}

// List returns destinations ordered by name. Disabled destinations are
// included only when requested (admin view).
func (r *DestinationRepository) List(ctx context.Context, includeDisabled bool) ([]models.Destination, error) {
	query := database.DB.WithContext(ctx).Order("name ASC")
	if !includeDisabled {
		query = query.Where("enabled = ?", true)
	}

	var dests []models.Destination
	if err := query.Find(&dests).Error; err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	return dests, nil
}

// Update updates a destination
func (r *DestinationRepository) Update(ctx context.Context, dest *models.Destination) error {
	if err := database.DB.WithContext(ctx).Save(dest).Error; err != nil {
		return fmt.Errorf("failed to update destination: %w", err)
	}
	return nil
}

// Delete soft deletes a destination
func (r *DestinationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := database.DB.WithContext(ctx).Delete(&models.Destination{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete destination: %w", err)
	}
	return nil
}
