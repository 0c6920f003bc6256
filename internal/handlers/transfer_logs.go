package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/telepost/dicom-transfer/internal/middleware"
	"github.com/telepost/dicom-transfer/internal/repository"
)

const defaultAuditLimit = 100

// TransferLogHandler serves the audit listing. Admins see all entries,
// regular users only their own.
type TransferLogHandler struct {
	repo *repository.TransferLogRepository
}

// NewTransferLogHandler creates a new transfer log handler
func NewTransferLogHandler(repo *repository.TransferLogRepository) *TransferLogHandler {
	return &TransferLogHandler{repo: repo}
}

// List returns transfer log entries for the audit view.
func (h *TransferLogHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := middleware.GetUser(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}

	q := repository.AuditQuery{
		UserID: user.UserID,
		Admin:  user.IsAdmin,
		Status: r.URL.Query().Get("status"),
		Action: r.URL.Query().Get("action"),
		Limit:  defaultAuditLimit,
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n > 0 {
			q.Offset = n
		}
	}

	entries, err := h.repo.ListAudit(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list transfer logs")
		writeError(w, http.StatusInternalServerError, "Failed to list transfer logs")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
