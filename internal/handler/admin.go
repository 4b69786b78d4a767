package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
	"github.com/aryan0dhankhar/doorgate/internal/service"
	"github.com/aryan0dhankhar/doorgate/internal/worker"
)

// defaultLatestLogs is how many entries GET /admin/logs returns without a limit
const defaultLatestLogs = 50

// AdminHandler serves the administrative JSON API
type AdminHandler struct {
	admin  *service.AdminService
	logger *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admin *service.AdminService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{admin: admin, logger: logger}
}

// UserResponse is a cached directory user
type UserResponse struct {
	Principal string   `json:"upn"`
	TagUID    string   `json:"rfid_uid"`
	Groups    []string `json:"groups"`
}

// LogResponse is one audit entry
type LogResponse struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      *string   `json:"user"`
	TagUID    string    `json:"rfid_uid"`
	DoorID    int64     `json:"door_id"`
	Granted   bool      `json:"granted"`
}

// DoorRequest adds a door
type DoorRequest struct {
	ID    int64  `json:"id"`
	Group string `json:"group"`
}

// DoorResponse is a door and the group it requires
type DoorResponse struct {
	ID    int64  `json:"id"`
	Group string `json:"group"`
}

// GroupResponse is a cached group
type GroupResponse struct {
	Name string `json:"name"`
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		groups := u.Groups
		if groups == nil {
			groups = []string{}
		}
		out = append(out, UserResponse{Principal: u.Principal, TagUID: u.TagUID, Groups: groups})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListLogs handles GET /admin/logs?limit=N, newest first
func (h *AdminHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLatestLogs
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.admin.ListLogs(r.Context(), limit)
	if err != nil {
		h.fail(w, "list logs", err)
		return
	}
	out := make([]LogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLogResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// ExportLogs handles GET /admin/logs/export[?format=xlsx]
func (h *AdminHandler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=logs.csv")
		if err := h.admin.ExportCSV(r.Context(), w); err != nil {
			h.logger.Error("csv export failed", slog.String("error", err.Error()))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=logs.xlsx")
		if err := h.admin.ExportXLSX(r.Context(), w); err != nil {
			h.logger.Error("xlsx export failed", slog.String("error", err.Error()))
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
	}
}

// ListDoors handles GET /admin/doors
func (h *AdminHandler) ListDoors(w http.ResponseWriter, r *http.Request) {
	doors, err := h.admin.ListDoors(r.Context())
	if err != nil {
		h.fail(w, "list doors", err)
		return
	}
	out := make([]DoorResponse, 0, len(doors))
	for _, d := range doors {
		out = append(out, DoorResponse{ID: d.ID, Group: d.Group})
	}
	writeJSON(w, http.StatusOK, out)
}

// AddDoor handles POST /admin/doors
func (h *AdminHandler) AddDoor(w http.ResponseWriter, r *http.Request) {
	var req DoorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	door, err := h.admin.AddDoor(r.Context(), req.ID, req.Group)
	if err != nil {
		h.fail(w, "add door", err)
		return
	}
	writeJSON(w, http.StatusCreated, DoorResponse{ID: door.ID, Group: door.Group})
}

// DeleteDoor handles DELETE /admin/doors/{id}
func (h *AdminHandler) DeleteDoor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "door id must be an integer")
		return
	}
	if err := h.admin.DeleteDoor(r.Context(), id); err != nil {
		h.fail(w, "delete door", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGroups handles GET /admin/groups
func (h *AdminHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.admin.ListGroups(r.Context())
	if err != nil {
		h.fail(w, "list groups", err)
		return
	}
	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupResponse{Name: g.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteGroup handles DELETE /admin/groups/{name}; doors requiring it go too
func (h *AdminHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteGroup(r.Context(), r.PathValue("name")); err != nil {
		h.fail(w, "delete group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sync handles POST /admin/sync
func (h *AdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.Sync(r.Context())
	if err != nil {
		if errors.Is(err, worker.ErrReconcileInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("on-demand sync failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "directory sync failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// fail maps domain errors onto status codes with plain messages
func (h *AdminHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("admin operation failed", slog.String("operation", op), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toLogResponse(e *domain.AuditEntry) LogResponse {
	resp := LogResponse{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		TagUID:    e.TagUID,
		DoorID:    e.DoorID,
		Granted:   e.Granted,
	}
	if e.Principal != "" {
		user := e.Principal
		resp.User = &user
	}
	return resp
}
