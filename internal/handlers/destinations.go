package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/telepost/dicom-transfer/internal/middleware"
	"github.com/telepost/dicom-transfer/internal/models"
	"github.com/telepost/dicom-transfer/internal/repository"
	"github.com/telepost/dicom-transfer/internal/services"
)

// DestinationHandler serves the destination registry. Writes are admin
// only; regular users see only enabled destinations.
type DestinationHandler struct {
	repo            *repository.DestinationRepository
	transferService *services.TransferService
}

// NewDestinationHandler creates a new destination handler
func NewDestinationHandler(repo *repository.DestinationRepository, transferService *services.TransferService) *DestinationHandler {
	return &DestinationHandler{
		repo:            repo,
		transferService: transferService,
	}
}

// List returns destinations visible to the caller.
func (h *DestinationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	dests, err := h.repo.List(ctx, user.IsAdmin)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list destinations")
		writeError(w, http.StatusInternalServerError, "Failed to list destinations")
		return
	}

	writeJSON(w, http.StatusOK, dests)
}

// Get returns one destination.
func (h *DestinationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid destination ID")
		return
	}

	dest, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Destination not found")
		return
	}

	writeJSON(w, http.StatusOK, dest)
}

// Create adds a destination (admin only).
func (h *DestinationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok || !user.IsAdmin {
		writeError(w, http.StatusForbidden, "Admin privileges required")
		return
	}

	var req models.DestinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dest := &models.Destination{
		Name:        req.Name,
		AETitle:     req.AETitle,
		Host:        req.Host,
		Port:        req.Port,
		Description: req.Description,
		Enabled:     true,
		CreatedBy:   &user.UserID,
	}
	if req.Enabled != nil {
		dest.Enabled = *req.Enabled
	}
	if err := dest.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Create(ctx, dest); err != nil {
		log.Error().Err(err).Msg("Failed to create destination")
		writeError(w, http.StatusInternalServerError, "Failed to create destination")
		return
	}

	writeJSON(w, http.StatusCreated, dest)
}

// Update modifies a destination (admin only).
func (h *DestinationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok || !user.IsAdmin {
		writeError(w, http.StatusForbidden, "Admin privileges required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid destination ID")
		return
	}
	dest, err := h.repo.GetByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Destination not found")
		return
	}

	var req models.DestinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name != "" {
		dest.Name = req.Name
	}
	if req.AETitle != "" {
		dest.AETitle = req.AETitle
	}
	if req.Host != "" {
		dest.Host = req.Host
	}
	if req.Port != 0 {
		dest.Port = req.Port
	}
	if req.Description != "" {
		dest.Description = req.Description
	}
	if req.Enabled != nil {
		dest.Enabled = *req.Enabled
	}
	if err := dest.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Update(ctx, dest); err != nil {
		log.Error().Err(err).Msg("Failed to update destination")
		writeError(w, http.StatusInternalServerError, "Failed to update destination")
		return
	}

	writeJSON(w, http.StatusOK, dest)
}

// Delete removes a destination (admin only). Ledger entries referencing
// it keep their history with the reference nulled.
func (h *DestinationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok || !user.IsAdmin {
		writeError(w, http.StatusForbidden, "Admin privileges required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid destination ID")
		return
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		log.Error().Err(err).Msg("Failed to delete destination")
		writeError(w, http.StatusInternalServerError, "Failed to delete destination")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestConnection probes a destination and returns the result. The probe
// itself never errors; a failed probe is a 200 with success: false.
func (h *DestinationHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid destination ID")
		return
	}
	dest, err := h.repo.GetByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Destination not found")
		return
	}

	result := h.transferService.ProbeAndLog(ctx, user, dest)
	writeJSON(w, http.StatusOK, result)
}
