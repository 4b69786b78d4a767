package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
	"github.com/aryan0dhankhar/doorgate/internal/repository"
	"github.com/aryan0dhankhar/doorgate/pkg/database"
)

var discard = slog.New(slog.DiscardHandler)

type store struct {
	users  *countingUsers
	groups *repository.GroupRepository
	doors  *repository.DoorRepository
	audit  *repository.AuditRepository
}

func newStore(t *testing.T) store {
	t.Helper()
	pool := database.OpenTestDB(t)
	db := pool.GetDB()
	return store{
		users:  &countingUsers{UserRepository: repository.NewUserRepository(db, discard)},
		groups: repository.NewGroupRepository(db, discard),
		doors:  repository.NewDoorRepository(db, discard),
		audit:  repository.NewAuditRepository(db, discard),
	}
}

// countingUsers counts mutating calls that reach the store
type countingUsers struct {
	*repository.UserRepository
	writes atomic.Int64
}

func (c *countingUsers) Create(ctx context.Context, u *domain.User) error {
	c.writes.Add(1)
	return c.UserRepository.Create(ctx, u)
}

func (c *countingUsers) Update(ctx context.Context, u *domain.User) error {
	c.writes.Add(1)
	return c.UserRepository.Update(ctx, u)
}

func (c *countingUsers) Delete(ctx context.Context, principal string) error {
	c.writes.Add(1)
	return c.UserRepository.Delete(ctx, principal)
}

// fakeDirectory serves fixed entries keyed by object class
type fakeDirectory struct {
	entries   map[string][]domain.DirectoryEntry
	openErr   error
	searchErr map[string]error
	opened    int
}

func (f *fakeDirectory) Open(ctx context.Context) (domain.DirectorySession, error) {
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeSession{dir: f}, nil
}

type fakeSession struct {
	dir    *fakeDirectory
	closed bool
}

func (s *fakeSession) Search(ctx context.Context, baseDN, objectClass string) ([]domain.DirectoryEntry, error) {
	if err := s.dir.searchErr[objectClass]; err != nil {
		return nil, err
	}
	return s.dir.entries[objectClass], nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func userEntry(principal, tag, status string, groups ...string) domain.DirectoryEntry {
	memberOf := make([]string, 0, len(groups))
	for _, g := range groups {
		memberOf = append(memberOf, "CN="+g+",OU=Door Access,DC=corp,DC=local")
	}
	attrs := map[string][]string{
		"userPrincipalName":  {principal},
		"memberOf":           memberOf,
		"userAccountControl": {status},
	}
	if tag != "" {
		attrs["rFIDUID"] = []string{tag}
	}
	return domain.DirectoryEntry{DN: "CN=" + principal + ",OU=Users,DC=corp,DC=local", Attributes: attrs}
}

func groupEntry(name string) domain.DirectoryEntry {
	return domain.DirectoryEntry{
		DN:         "CN=" + name + ",OU=Door Access,DC=corp,DC=local",
		Attributes: map[string][]string{"cn": {name}},
	}
}

// failingAudit rejects every append
type failingAudit struct{}

func (failingAudit) Append(context.Context, *domain.AuditEntry) error {
	return errors.New("disk full")
}

func (failingAudit) List(context.Context, int) ([]*domain.AuditEntry, error) {
	return nil, nil
}

// failingUsers fails every lookup with a storage error
type failingUsers struct {
	domain.UserRepository
}

func (failingUsers) GetByTag(context.Context, string) (*domain.User, error) {
	return nil, errors.New("database is locked")
}
