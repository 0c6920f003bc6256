package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/telepost/dicom-transfer/internal/dicomfile"
	"github.com/telepost/dicom-transfer/internal/metrics"
	"github.com/telepost/dicom-transfer/internal/models"
	"github.com/telepost/dicom-transfer/internal/sessions"
)

// ImportService spools uploaded DICOM files, extracts their metadata,
// groups them into the patient tree, and registers every series in the
// session index for a later send.
type ImportService struct {
	parser *dicomfile.Parser
	index  *sessions.Index
	ledger LedgerStore
}

// NewImportService creates a new import service
func NewImportService(parser *dicomfile.Parser, index *sessions.Index, ledger LedgerStore) *ImportService {
	return &ImportService{
		parser: parser,
		index:  index,
		ledger: ledger,
	}
}

// Import processes one batch of uploaded files. Files that fail to spool
// or parse are collected as error strings and never abort the batch; the
// whole import fails only when no file yields usable metadata.
func (s *ImportService) Import(ctx context.Context, user models.UserContext, uploads []*multipart.FileHeader) (*models.ImportResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no files provided")
	}

	tempDir, err := os.MkdirTemp("", "dicom_import_")
	if err != nil {
		return nil, fmt.Errorf("failed to create import directory: %w", err)
	}

	sessionID := uuid.New().String()

	var records []models.MetadataRecord
	var errs []string

	for _, upload := range uploads {
		path, err := spoolUpload(tempDir, upload)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Error processing %s: %v", upload.Filename, err))
			metrics.ImportErrors.Inc()
			continue
		}

		rec, err := s.parser.Parse(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Failed to parse DICOM file: %s", upload.Filename))
			metrics.ImportErrors.Inc()
			continue
		}
		records = append(records, *rec)
		metrics.FilesImported.Inc()
	}

	if len(records) == 0 {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("no valid DICOM files found")
	}

	patients := dicomfile.Group(records)

	// Register each series for the send handoff and rewrite its public ID
	// to the composite session-scoped key.
	seriesFound := 0
	for pi := range patients {
		for si := range patients[pi].Series {
			series := &patients[pi].Series[si]
			id, err := s.index.Register(ctx, sessionID, user.UserID, series.ID, series.Files)
			if err != nil {
				return nil, fmt.Errorf("failed to register series: %w", err)
			}
			series.ID = id
			seriesFound++
		}
	}

	importLog := &models.TransferLog{
		UserID:   user.UserID,
		Username: user.Username,
		Action:   models.ActionImport,
		Status:   models.StatusPending,
	}
	// Imports complete synchronously; the entry is terminal on creation.
	_ = importLog.MarkCompleted(models.StatusSuccess, "", models.AsMap(models.ImportDetails{
		FilesProcessed: len(records),
		PatientsCount:  len(patients),
		SessionID:      sessionID,
		TempDir:        tempDir,
	}))
	if err := s.ledger.Create(ctx, importLog); err != nil {
		log.Error().Err(err).Msg("Failed to record import in transfer log")
	}

	log.Info().
		Str("session_id", sessionID).
		Int("files", len(records)).
		Int("patients", len(patients)).
		Int("series", seriesFound).
		Msg("DICOM import completed")

	return &models.ImportResult{
		Patients: patients,
		Summary: models.ImportSummary{
			FilesProcessed: len(records),
			PatientsFound:  len(patients),
			SeriesFound:    seriesFound,
			Errors:         errs,
		},
	}, nil
}

// spoolUpload writes one uploaded file into the session directory. Only
// the base name is kept; upload names never escape the directory.
func spoolUpload(dir string, upload *multipart.FileHeader) (string, error) {
	src, err := upload.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(dir, filepath.Base(upload.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
