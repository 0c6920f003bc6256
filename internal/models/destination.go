package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Destination is a configured DICOM network peer that series can be sent
// to. Only admins manage destinations; regular users pick from them.
type Destination struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	AETitle     string    `gorm:"type:varchar(16);not null" json:"ae_title"`
	Host        string    `gorm:"type:varchar(255);not null" json:"host"`
	Port        int       `gorm:"not null;default:104" json:"port"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Enabled     bool      `gorm:"default:true" json:"enabled"`

	CreatedBy *uuid.UUID     `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Destination) TableName() string {
	return "destinations"
}

// BeforeCreate hook
func (d *Destination) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Validate checks DICOM constraints on the destination fields.
func (d *Destination) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.AETitle == "" || len(d.AETitle) > 16 {
		return fmt.Errorf("AE title must be 1-16 characters")
	}
	if d.Host == "" {
		return fmt.Errorf("host is required")
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// DestinationRequest is the create/update payload.
type DestinationRequest struct {
	Name        string `json:"name"`
	AETitle     string `json:"ae_title"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Description string `json:"description"`
	Enabled     *bool  `json:"enabled"`
}
