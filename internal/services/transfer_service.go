package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/telepost/dicom-transfer/internal/config"
	"github.com/telepost/dicom-transfer/internal/dicomfile"
	"github.com/telepost/dicom-transfer/internal/metrics"
	"github.com/telepost/dicom-transfer/internal/models"
	"github.com/telepost/dicom-transfer/internal/repository"
	"github.com/telepost/dicom-transfer/internal/sessions"
	"github.com/telepost/dicom-transfer/internal/worker"
)

// ErrNoValidSeries is returned when a send request resolves to zero
// transferable series after filtering.
var ErrNoValidSeries = errors.New("no valid series found for transfer")

// Minimum process-level timeout for one series transfer. Small series
// still need room for association setup against slow peers.
const minTransferTimeout = 300 * time.Second

// Per-file allowance added on top for large series.
const perFileTimeout = 2 * time.Second

// Fixed timeout for connectivity probes.
const probeTimeout = 30 * time.Second

// LedgerStore is the transfer log persistence the service needs.
type LedgerStore interface {
	Create(ctx context.Context, entry *models.TransferLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TransferLog, error)
	Update(ctx context.Context, entry *models.TransferLog) error
	ListSendStatuses(ctx context.Context, q repository.SendStatusQuery) ([]models.TransferLog, error)
}

// DestinationStore resolves send targets.
type DestinationStore interface {
	GetEnabledByID(ctx context.Context, id uuid.UUID) (*models.Destination, error)
}

// TransferService orchestrates series transfers and connectivity probes
// against the external DCMTK tools, recording every operation in the
// transfer ledger.
type TransferService struct {
	ledger       LedgerStore
	destinations DestinationStore
	index        *sessions.Index
	pool         *worker.Pool
	runner       CommandRunner
	cfg          config.DICOMConfig

	// normalize is swappable in tests.
	normalize func(string) string
}

// NewTransferService creates a new transfer service
func NewTransferService(
	ledger LedgerStore,
	destinations DestinationStore,
	index *sessions.Index,
	pool *worker.Pool,
	runner CommandRunner,
	cfg config.DICOMConfig,
) *TransferService {
	return &TransferService{
		ledger:       ledger,
		destinations: destinations,
		index:        index,
		pool:         pool,
		runner:       runner,
		cfg:          cfg,
		normalize:    dicomfile.Normalize,
	}
}

// DispatchSend resolves the requested series/destination pairs, creates a
// pending ledger entry per surviving pair, and hands each to the worker
// pool. It returns the number of transfers initiated without waiting for
// any of them; outcomes are observed through the ledger. Pairs that fail
// resolution (unknown series, foreign owner, missing or disabled
// destination) are skipped silently.
func (s *TransferService) DispatchSend(ctx context.Context, user models.UserContext, req models.SendRequest) (int, error) {
	initiated := 0

	for _, pair := range req.SeriesToSend {
		if pair.SeriesID == "" || pair.DestinationID == "" {
			continue
		}

		entry, err := s.index.Lookup(ctx, pair.SeriesID)
		if err != nil {
			log.Warn().Str("series_id", pair.SeriesID).Msg("Series not found in session index, skipping")
			continue
		}
		if entry.UserID != user.UserID {
			log.Warn().
				Str("series_id", pair.SeriesID).
				Str("user", user.Username).
				Msg("Series owned by another user, skipping")
			continue
		}

		destID, err := uuid.Parse(pair.DestinationID)
		if err != nil {
			log.Warn().Str("destination", pair.DestinationID).Msg("Invalid destination ID, skipping")
			continue
		}
		dest, err := s.destinations.GetEnabledByID(ctx, destID)
		if err != nil {
			log.Warn().Str("destination", pair.DestinationID).Msg("Destination missing or disabled, skipping")
			continue
		}

		if len(entry.Files) == 0 {
			continue
		}
		first := entry.Files[0]
		files := make([]string, 0, len(entry.Files))
		for _, f := range entry.Files {
			files = append(files, f.FilePath)
		}

		count := len(entry.Files)
		logEntry := &models.TransferLog{
			UserID:            user.UserID,
			Username:          user.Username,
			Action:            models.ActionSend,
			Status:            models.StatusPending,
			DestinationID:     &dest.ID,
			PatientName:       first.PatientName,
			PatientID:         first.PatientID,
			StudyInstanceUID:  first.StudyInstanceUID,
			SeriesInstanceUID: first.SeriesInstanceUID,
			SeriesDescription: first.SeriesDescription,
			Modality:          first.Modality,
			InstanceCount:     &count,
			Details: models.AsMap(models.SendDetails{
				SeriesID: pair.SeriesID,
				Files:    files,
			}),
		}
		if err := s.ledger.Create(ctx, logEntry); err != nil {
			log.Error().Err(err).Str("series_id", pair.SeriesID).Msg("Failed to create transfer log")
			continue
		}

		logID := logEntry.ID
		destCopy := *dest
		if err := s.pool.Submit(func(taskCtx context.Context) {
			s.Send(taskCtx, logID, files, &destCopy)
		}); err != nil {
			log.Error().Err(err).Str("series_id", pair.SeriesID).Msg("Failed to enqueue transfer")
			s.failEntry(ctx, logID, fmt.Sprintf("Transfer could not be queued: %v", err), nil)
			continue
		}

		initiated++
	}

	if initiated == 0 {
		return 0, ErrNoValidSeries
	}
	return initiated, nil
}

// Send transfers one series to a destination and drives its ledger entry
// to a terminal state. It returns true only when the external store tool
// accepted every file. The session's temporary directory is removed in
// every outcome.
func (s *TransferService) Send(ctx context.Context, logID uuid.UUID, filePaths []string, dest *models.Destination) (ok bool) {
	defer s.cleanupSessionDir(filePaths)

	// The DICOM reader can panic on truncated input. The ledger entry must
	// still reach a terminal state; the task context may already be dead
	// at this point, so the update runs on its own context.
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("error", r).
				Str("log_id", logID.String()).
				Msg("Panic during transfer")
			s.failEntry(context.Background(), logID, fmt.Sprintf("Transfer aborted: %v", r), nil)
			ok = false
		}
	}()

	entry, err := s.ledger.GetByID(ctx, logID)
	if err != nil {
		log.Error().Err(err).Str("log_id", logID.String()).Msg("Transfer log entry not found")
		return false
	}
	if err := entry.MarkSending(); err != nil {
		log.Error().Err(err).Str("log_id", logID.String()).Msg("Refusing to start transfer")
		return false
	}
	if err := s.ledger.Update(ctx, entry); err != nil {
		log.Error().Err(err).Str("log_id", logID.String()).Msg("Failed to update transfer log")
		return false
	}

	// Missing files are skipped, not fatal; the rest of the series still
	// goes out.
	var validFiles []string
	for _, path := range filePaths {
		if _, err := os.Stat(path); err != nil {
			log.Warn().Str("file", path).Msg("File not found, excluding from transfer")
			continue
		}
		validFiles = append(validFiles, s.normalize(path))
	}

	if len(validFiles) == 0 {
		s.completeEntry(ctx, entry, models.StatusFailed, "No valid files found for transfer", nil)
		return false
	}

	timeout := minTransferTimeout
	if scaled := time.Duration(len(validFiles)) * perFileTimeout; scaled > timeout {
		timeout = scaled
	}

	args := []string{
		"-aet", s.cfg.LocalAETitle,
		"-aec", dest.AETitle,
		"--propose-uncompr",
		"--propose-little",
		"--propose-implicit",
		"--timeout", strconv.Itoa(int(s.cfg.ProtocolTimeout.Seconds())),
		dest.Host,
		strconv.Itoa(dest.Port),
	}
	args = append(args, validFiles...)

	log.Info().
		Str("destination", dest.Name).
		Str("host", dest.Host).
		Int("port", dest.Port).
		Int("files", len(validFiles)).
		Dur("timeout", timeout).
		Msg("Starting DICOM transfer")

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, runErr := s.runner.Run(runCtx, s.cfg.StoreSCUPath, args...)

	switch {
	case runErr == nil:
		bytesSent := totalSize(validFiles)
		entry.BytesTransferred = &bytesSent
		s.completeEntry(ctx, entry, models.StatusSuccess, "", models.AsMap(models.SendDetails{
			SeriesID:         seriesIDFromDetails(entry),
			Files:            filePaths,
			FilesTransferred: len(validFiles),
			StoreSCUOutput:   stdout,
		}))
		metrics.BytesTransferred.Add(float64(bytesSent))
		log.Info().
			Str("destination", dest.Name).
			Int("files", len(validFiles)).
			Int64("bytes", bytesSent).
			Msg("Transfer completed successfully")
		return true

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		msg := fmt.Sprintf("Transfer timed out after %s", timeout)
		s.completeEntry(ctx, entry, models.StatusFailed, msg, nil)
		log.Error().Str("destination", dest.Name).Msg(msg)
		return false

	default:
		errMsg := strings.TrimSpace(stderr)
		if errMsg == "" {
			errMsg = fmt.Sprintf("storescu failed: %v", runErr)
		}
		s.completeEntry(ctx, entry, models.StatusFailed, errMsg, models.AsMap(models.SendDetails{
			SeriesID:       seriesIDFromDetails(entry),
			Files:          filePaths,
			StoreSCUOutput: stdout,
			StoreSCUError:  stderr,
		}))
		log.Error().
			Str("destination", dest.Name).
			Str("error", errMsg).
			Msg("Transfer failed")
		return false
	}
}

// TransferStatus returns the caller's recent send operations for the
// status poller. With explicit series IDs the lookup filters on them;
// otherwise it covers the last 24 hours, newest first, capped at 50.
func (s *TransferService) TransferStatus(ctx context.Context, user models.UserContext, seriesIDs []string) ([]models.SeriesStatus, error) {
	entries, err := s.ledger.ListSendStatuses(ctx, repository.SendStatusQuery{
		UserID:    user.UserID,
		SeriesIDs: seriesIDs,
		Since:     time.Now().UTC().Add(-24 * time.Hour),
		Limit:     50,
	})
	if err != nil {
		return nil, err
	}

	statuses := make([]models.SeriesStatus, 0, len(entries))
	for _, entry := range entries {
		seriesID, _ := entry.Details["series_id"].(string)
		if seriesID == "" {
			continue
		}
		status := models.SeriesStatus{
			ID:                seriesID,
			Status:            string(entry.Status),
			Message:           entry.ErrorMessage,
			Timestamp:         entry.CreatedAt.Format(time.RFC3339),
			PatientName:       entry.PatientName,
			SeriesDescription: entry.SeriesDescription,
		}
		if entry.CompletedAt != nil {
			completed := entry.CompletedAt.Format(time.RFC3339)
			status.CompletedAt = &completed
		}
		if entry.Destination != nil {
			status.Destination = entry.Destination.Name
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Probe tests connectivity to a destination with the external echo tool.
// It never returns an error; failures are reported in the result.
func (s *TransferService) Probe(ctx context.Context, dest *models.Destination) models.ProbeResult {
	args := []string{
		"-aet", s.cfg.LocalAETitle,
		"-aec", dest.AETitle,
		dest.Host,
		strconv.Itoa(dest.Port),
	}

	runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, runErr := s.runner.Run(runCtx, s.cfg.EchoSCUPath, args...)
	elapsed := time.Since(start).Milliseconds()

	result := models.ProbeResult{ResponseTime: &elapsed}
	switch {
	case runErr == nil:
		result.Success = true
		result.Message = "Connection successful"
		result.Details = stdout
		metrics.ProbesTotal.WithLabelValues("success").Inc()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Message = "Connection timed out"
		result.Details = fmt.Sprintf("No response after %s", probeTimeout)
		metrics.ProbesTotal.WithLabelValues("timeout").Inc()
	default:
		details := strings.TrimSpace(stderr)
		if details == "" {
			// The tool never produced output, e.g. the binary is missing.
			details = runErr.Error()
		}
		result.Message = "Connection failed"
		result.Details = details
		metrics.ProbesTotal.WithLabelValues("failure").Inc()
	}
	return result
}

// ProbeAndLog runs a connectivity test and records it as a ledger entry.
func (s *TransferService) ProbeAndLog(ctx context.Context, user models.UserContext, dest *models.Destination) models.ProbeResult {
	entry := &models.TransferLog{
		UserID:        user.UserID,
		Username:      user.Username,
		Action:        models.ActionTestConnection,
		Status:        models.StatusPending,
		DestinationID: &dest.ID,
	}
	if err := s.ledger.Create(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to create connectivity test log")
	}

	result := s.Probe(ctx, dest)

	status := models.StatusFailed
	errMsg := result.Message
	if result.Success {
		status = models.StatusSuccess
		errMsg = ""
	}
	details := models.AsMap(models.ProbeDetails{
		Output:         result.Details,
		ResponseTimeMs: *result.ResponseTime,
	})
	if entry.ID != uuid.Nil {
		s.completeEntry(ctx, entry, status, errMsg, details)
	}
	return result
}

// completeEntry drives an entry to its terminal state and persists it.
func (s *TransferService) completeEntry(ctx context.Context, entry *models.TransferLog, status models.TransferStatus, errMsg string, details models.JSONMap) {
	if err := entry.MarkCompleted(status, errMsg, details); err != nil {
		log.Error().Err(err).Str("log_id", entry.ID.String()).Msg("Invalid ledger transition")
		return
	}
	if err := s.ledger.Update(ctx, entry); err != nil {
		log.Error().Err(err).Str("log_id", entry.ID.String()).Msg("Failed to persist transfer log")
		return
	}
	if entry.Action == models.ActionSend {
		metrics.TransfersCompleted.WithLabelValues(string(status)).Inc()
	}
}

// failEntry loads and fails an entry by ID.
func (s *TransferService) failEntry(ctx context.Context, logID uuid.UUID, msg string, details models.JSONMap) {
	entry, err := s.ledger.GetByID(ctx, logID)
	if err != nil {
		log.Error().Err(err).Str("log_id", logID.String()).Msg("Transfer log entry not found")
		return
	}
	s.completeEntry(ctx, entry, models.StatusFailed, msg, details)
}

// cleanupSessionDir removes the import session's temporary directory,
// identified by its name marker. Both originals and normalized copies
// live there, so one removal covers everything.
func (s *TransferService) cleanupSessionDir(filePaths []string) {
	for _, path := range filePaths {
		dir := filepath.Dir(path)
		if strings.Contains(filepath.Base(dir), "dicom_import_") {
			if err := os.RemoveAll(dir); err != nil {
				log.Warn().Err(err).Str("dir", dir).Msg("Failed to clean up session directory")
			}
			return
		}
	}
}

func seriesIDFromDetails(entry *models.TransferLog) string {
	id, _ := entry.Details["series_id"].(string)
	return id
}

func totalSize(paths []string) int64 {
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}
