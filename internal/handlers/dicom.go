package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/telepost/dicom-transfer/internal/middleware"
	"github.com/telepost/dicom-transfer/internal/models"
	"github.com/telepost/dicom-transfer/internal/services"
)

// Uploads larger than this are rejected before spooling.
const maxImportBytes = 2 << 30 // 2 GiB

// DICOMHandler serves the import / send / status endpoints.
type DICOMHandler struct {
	importService   *services.ImportService
	transferService *services.TransferService
}

// NewDICOMHandler creates a new DICOM handler
func NewDICOMHandler(importService *services.ImportService, transferService *services.TransferService) *DICOMHandler {
	return &DICOMHandler{
		importService:   importService,
		transferService: transferService,
	}
}

// Import accepts a multipart batch of DICOM files, parses and groups
// them, and returns the patient tree plus a summary.
func (h *DICOMHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart payload")
		return
	}
	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	result, err := h.importService.Import(ctx, user, uploads)
	if err != nil {
		log.Error().Err(err).Msg("Import failed")
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Send initiates asynchronous transfers for the selected series and
// acknowledges immediately with the number of transfers started.
func (h *DICOMHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	var req models.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.SeriesToSend) == 0 {
		writeError(w, http.StatusBadRequest, "No series specified for transfer")
		return
	}

	count, err := h.transferService.DispatchSend(ctx, user, req)
	if err != nil {
		if errors.Is(err, services.ErrNoValidSeries) {
			writeError(w, http.StatusBadRequest, "No valid series found for transfer")
			return
		}
		log.Error().Err(err).Msg("Transfer initiation failed")
		writeError(w, http.StatusInternalServerError, "Transfer initiation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        fmt.Sprintf("Transfer initiated for %d series", count),
		"transfer_count": count,
	})
}

// TransferStatus reports the caller's recent send operations.
func (h *DICOMHandler) TransferStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	var seriesIDs []string
	if raw := r.URL.Query().Get("series_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				seriesIDs = append(seriesIDs, id)
			}
		}
	}

	statuses, err := h.transferService.TransferStatus(ctx, user, seriesIDs)
	if err != nil {
		log.Error().Err(err).Msg("Status retrieval failed")
		writeError(w, http.StatusInternalServerError, "Status retrieval failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"series": statuses})
}
