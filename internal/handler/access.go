package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
)

// maxAccessBody bounds decision request bodies
const maxAccessBody = 4 << 10

// Decider answers access decisions
type Decider interface {
	Decide(ctx context.Context, tagUID string, doorID int64) (domain.Decision, error)
}

// AccessRequest is the reader's decision request. Pointer fields distinguish
// an absent field from a zero value.
type AccessRequest struct {
	RFIDUID *string `json:"rfid_uid"`
	DoorID  *int64  `json:"door_id"`
}

// AccessResponse is the decision returned to the reader
type AccessResponse struct {
	AccessGranted bool   `json:"access_granted"`
	UPN           string `json:"upn,omitempty"`
}

// AccessHandler serves POST /access
type AccessHandler struct {
	decider Decider
	logger  *slog.Logger
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(decider Decider, logger *slog.Logger) *AccessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessHandler{decider: decider, logger: logger}
}

// ServeHTTP answers 200 with the principal on grant, 403 on every denial,
// 400 when a field is missing and 500 when the decision could not be audited.
func (h *AccessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAccessBody)).Decode(&req); err != nil {
		h.logger.Debug("invalid access request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "RFID UID and door ID are required")
		return
	}
	if req.RFIDUID == nil || *req.RFIDUID == "" || req.DoorID == nil {
		writeError(w, http.StatusBadRequest, "RFID UID and door ID are required")
		return
	}

	decision, err := h.decider.Decide(r.Context(), *req.RFIDUID, *req.DoorID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AccessResponse{AccessGranted: false})
		return
	}
	if !decision.Granted {
		writeJSON(w, http.StatusForbidden, AccessResponse{AccessGranted: false})
		return
	}
	writeJSON(w, http.StatusOK, AccessResponse{AccessGranted: true, UPN: decision.Principal})
}
