package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransferStatus is the lifecycle state of a logged operation.
type TransferStatus string

const (
	StatusPending TransferStatus = "pending"
	StatusSending TransferStatus = "sending"
	StatusSuccess TransferStatus = "success"
	StatusFailed  TransferStatus = "failed"
)

// TransferAction is the kind of logged operation.
type TransferAction string

const (
	ActionImport         TransferAction = "import"
	ActionSend           TransferAction = "send"
	ActionTestConnection TransferAction = "test_connection"
)

// JSONMap stores operation-specific details as a JSONB column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(data, m)
}

// TransferLog records one import, send, or connectivity-test operation for
// audit purposes. Each series transfer creates one entry.
type TransferLog struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_transfer_logs_user_ts" json:"user_id"`
	Username string         `gorm:"type:varchar(150)" json:"username"`
	Action   TransferAction `gorm:"type:varchar(20);not null;index" json:"action"`
	Status   TransferStatus `gorm:"type:varchar(10);not null;default:'pending';index" json:"status"`

	// DICOM identity, copied from the first record of the series when the
	// operation concerns one.
	PatientName       string `gorm:"type:varchar(255)" json:"patient_name"`
	PatientID         string `gorm:"type:varchar(64)" json:"patient_id"`
	StudyInstanceUID  string `gorm:"type:varchar(64)" json:"study_instance_uid"`
	SeriesInstanceUID string `gorm:"type:varchar(64)" json:"series_instance_uid"`
	SeriesDescription string `gorm:"type:varchar(255)" json:"series_description"`
	Modality          string `gorm:"type:varchar(16)" json:"modality"`
	InstanceCount     *int   `json:"instance_count,omitempty"`

	BytesTransferred *int64 `json:"bytes_transferred,omitempty"`

	// Destination may be deleted after the fact; the log entry survives.
	DestinationID *uuid.UUID   `gorm:"type:uuid" json:"destination_id,omitempty"`
	Destination   *Destination `gorm:"constraint:OnDelete:SET NULL" json:"destination,omitempty"`

	ErrorMessage string  `gorm:"type:text" json:"error_message,omitempty"`
	Details      JSONMap `gorm:"type:jsonb;default:'{}'" json:"details"`

	CreatedAt   time.Time  `gorm:"index:idx_transfer_logs_user_ts,sort:desc" json:"timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName overrides the table name
func (TransferLog) TableName() string {
	return "transfer_logs"
}

// BeforeCreate hook
func (t *TransferLog) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Details == nil {
		t.Details = JSONMap{}
	}
	return nil
}

// IsTerminal reports whether the entry reached a final state.
func (t *TransferLog) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// MarkSending moves a pending entry into the sending state.
func (t *TransferLog) MarkSending() error {
	if t.Status != StatusPending {
		return fmt.Errorf("cannot mark %s entry as sending", t.Status)
	}
	t.Status = StatusSending
	return nil
}

// MarkCompleted performs the sole terminal transition. It stamps the
// completion time, optionally records an error message, and merges the
// extra detail keys into the existing bag; on a key collision the newer
// value wins.
func (t *TransferLog) MarkCompleted(status TransferStatus, errorMessage string, details JSONMap) error {
	if status != StatusSuccess && status != StatusFailed {
		return fmt.Errorf("%s is not a terminal status", status)
	}
	if t.IsTerminal() {
		return fmt.Errorf("entry already completed with status %s", t.Status)
	}
	t.Status = status
	now := time.Now().UTC()
	t.CompletedAt = &now
	if errorMessage != "" {
		t.ErrorMessage = errorMessage
	}
	if len(details) > 0 {
		if t.Details == nil {
			t.Details = JSONMap{}
		}
		for k, v := range details {
			t.Details[k] = v
		}
	}
	return nil
}

// Duration returns how long the operation took, or nil while it is still
// in flight.
func (t *TransferLog) Duration() *time.Duration {
	if t.CompletedAt == nil {
		return nil
	}
	d := t.CompletedAt.Sub(t.CreatedAt)
	return &d
}

// SendDetails is the details payload recorded for send operations.
type SendDetails struct {
	SeriesID         string   `json:"series_id"`
	Files            []string `json:"files"`
	FilesTransferred int      `json:"files_transferred,omitempty"`
	StoreSCUOutput   string   `json:"storescu_output,omitempty"`
	StoreSCUError    string   `json:"storescu_error,omitempty"`
}

// ImportDetails is the details payload recorded for import operations.
type ImportDetails struct {
	FilesProcessed int    `json:"files_processed"`
	PatientsCount  int    `json:"patients_count"`
	SessionID      string `json:"session_id"`
	TempDir        string `json:"temp_dir"`
}

// ProbeDetails is the details payload recorded for connectivity tests.
type ProbeDetails struct {
	Output         string `json:"output,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// AsMap converts a typed details payload for merging into the bag.
func AsMap(v interface{}) JSONMap {
	b, err := json.Marshal(v)
	if err != nil {
		return JSONMap{}
	}
	var m JSONMap
	if err := json.Unmarshal(b, &m); err != nil {
		return JSONMap{}
	}
	return m
}
