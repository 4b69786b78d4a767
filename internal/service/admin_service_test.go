package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
)

type stubSyncer struct {
	report *domain.ReconcileReport
	err    error
	calls  int
}

func (s *stubSyncer) RunNow(context.Context) (*domain.ReconcileReport, error) {
	s.calls++
	return s.report, s.err
}

func newAdmin(t *testing.T) (*AdminService, store) {
	t.Helper()
	s := newStore(t)
	return NewAdminService(s.users, s.groups, s.doors, s.audit, &stubSyncer{report: &domain.ReconcileReport{UsersAdded: 2}}, discard), s
}

func TestAdmin_AddDoor(t *testing.T) {
	svc, s := newAdmin(t)
	ctx := context.Background()
	_, err := s.groups.Ensure(ctx, "Facilities")
	require.NoError(t, err)

	door, err := svc.AddDoor(ctx, 3, " Facilities ")
	require.NoError(t, err)
	assert.Equal(t, "Facilities", door.Group)

	_, err = svc.AddDoor(ctx, 3, "Facilities")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.AddDoor(ctx, 4, "Nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.AddDoor(ctx, 0, "Facilities")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.AddDoor(ctx, 5, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	doors, err := svc.ListDoors(ctx)
	require.NoError(t, err)
	assert.Len(t, doors, 1)

	require.NoError(t, svc.DeleteDoor(ctx, 3))
	assert.ErrorIs(t, svc.DeleteDoor(ctx, 3), domain.ErrNotFound)
}

func TestAdmin_DeleteGroupCascadesToDoors(t *testing.T) {
	svc, s := newAdmin(t)
	ctx := context.Background()
	_, err := s.groups.Ensure(ctx, "Lab")
	require.NoError(t, err)
	_, err = svc.AddDoor(ctx, 7, "Lab")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteGroup(ctx, "Lab"))
	_, err = s.doors.GetByID(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteGroup(ctx, "Lab"), domain.ErrNotFound)
}

func TestAdmin_Sync(t *testing.T) {
	svc, _ := newAdmin(t)
	report, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.UsersAdded)

	unconfigured := NewAdminService(nil, nil, nil, nil, nil, discard)
	_, err = unconfigured.Sync(context.Background())
	assert.Error(t, err)
}

func seedLogs(t *testing.T, s store) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.audit.Append(ctx, &domain.AuditEntry{Timestamp: at, Principal: "alice@corp", TagUID: "1234567890", DoorID: 3, Granted: true}))
	require.NoError(t, s.audit.Append(ctx, &domain.AuditEntry{Timestamp: at.Add(time.Minute), TagUID: "0000000000", DoorID: 3}))
}

func TestAdmin_ExportCSV(t *testing.T) {
	svc, s := newAdmin(t)
	seedLogs(t, s)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"timestamp", "user", "tag_uid", "door_id", "granted"}, rows[0])
	assert.Equal(t, []string{"2024-03-01T09:31:00Z", "", "0000000000", "3", "No"}, rows[1])
	assert.Equal(t, []string{"2024-03-01T09:30:00Z", "alice@corp", "1234567890", "3", "Yes"}, rows[2])
}

func TestAdmin_ExportXLSX(t *testing.T) {
	svc, s := newAdmin(t)
	seedLogs(t, s)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportXLSX(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "granted", rows[0][4])
	assert.Equal(t, "alice@corp", rows[2][1])
	assert.Equal(t, "Yes", rows[2][4])
}

func TestAdmin_ListLogsLatest(t *testing.T) {
	svc, s := newAdmin(t)
	seedLogs(t, s)

	latest, err := svc.ListLogs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "0000000000", latest[0].TagUID)
}
