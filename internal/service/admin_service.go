package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
)

// Syncer runs an on-demand reconciliation
type Syncer interface {
	RunNow(ctx context.Context) (*domain.ReconcileReport, error)
}

// exportHeader is the column layout of audit exports
var exportHeader = []string{"timestamp", "user", "tag_uid", "door_id", "granted"}

// AdminService backs the administrative surface: listings, door and group
// maintenance, audit export and on-demand sync.
type AdminService struct {
	users  domain.UserRepository
	groups domain.GroupRepository
	doors  domain.DoorRepository
	audit  domain.AuditRepository
	syncer Syncer
	logger *slog.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	users domain.UserRepository,
	groups domain.GroupRepository,
	doors domain.DoorRepository,
	audit domain.AuditRepository,
	syncer Syncer,
	logger *slog.Logger,
) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		users:  users,
		groups: groups,
		doors:  doors,
		audit:  audit,
		syncer: syncer,
		logger: logger,
	}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// ListLogs returns audit entries newest first; limit <= 0 returns all
func (s *AdminService) ListLogs(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	return s.audit.List(ctx, limit)
}

func (s *AdminService) ListDoors(ctx context.Context) ([]*domain.Door, error) {
	return s.doors.List(ctx)
}

func (s *AdminService) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	return s.groups.List(ctx)
}

// AddDoor maps a door to an existing group
func (s *AdminService) AddDoor(ctx context.Context, id int64, group string) (*domain.Door, error) {
	group = strings.TrimSpace(group)
	if id <= 0 {
		return nil, fmt.Errorf("%w: door id must be positive", domain.ErrInvalidInput)
	}
	if group == "" {
		return nil, fmt.Errorf("%w: group is required", domain.ErrInvalidInput)
	}

	door := &domain.Door{ID: id, Group: group}
	if err := s.doors.Create(ctx, door); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, fmt.Errorf("%w: unknown group %q", domain.ErrInvalidInput, group)
		}
		return nil, err
	}
	s.logger.Info("door added", slog.Int64("door_id", id), slog.String("group", group))
	return door, nil
}

func (s *AdminService) DeleteDoor(ctx context.Context, id int64) error {
	if err := s.doors.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("door deleted", slog.Int64("door_id", id))
	return nil
}

// DeleteGroup removes a group and every door that references it
func (s *AdminService) DeleteGroup(ctx context.Context, name string) error {
	if err := s.groups.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("group deleted", slog.String("group", name))
	return nil
}

// Sync triggers a reconciliation and waits for its report
func (s *AdminService) Sync(ctx context.Context) (*domain.ReconcileReport, error) {
	if s.syncer == nil {
		return nil, errors.New("reconciliation is not configured")
	}
	return s.syncer.RunNow(ctx)
}

// ExportCSV writes the full audit log, newest first, as CSV
func (s *AdminService) ExportCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.audit.List(ctx, 0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(exportRow(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportXLSX writes the full audit log, newest first, as a spreadsheet
func (s *AdminService) ExportXLSX(ctx context.Context, w io.Writer) error {
	entries, err := s.audit.List(ctx, 0)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	for col, h := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := exportRow(e)
		values := []any{row[0], row[1], row[2], e.DoorID, row[4]}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func exportRow(e *domain.AuditEntry) []string {
	granted := "No"
	if e.Granted {
		granted = "Yes"
	}
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Principal,
		e.TagUID,
		strconv.FormatInt(e.DoorID, 10),
		granted,
	}
}
