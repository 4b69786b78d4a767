package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record with the same key already exists
	ErrConflict = errors.New("already exists")
	// ErrDuplicateTag is returned when a tag credential is already held by another principal
	ErrDuplicateTag = errors.New("tag credential already assigned")
	// ErrInvalidInput is returned for data that violates an integrity rule
	ErrInvalidInput = errors.New("invalid input")
)

// User is a directory account mirrored into the local cache
type User struct {
	Principal string   // userPrincipalName, unique
	TagUID    string   // RFID credential, empty when the account has none
	Groups    []string // sorted group common names
}

// Group is an authorization scope a door can require
type Group struct {
	Name string
}

// Door maps a physical reader to the group allowed to open it
type Door struct {
	ID    int64
	Group string
}

// AuditEntry is one immutable record of an access decision
type AuditEntry struct {
	ID        int64
	Timestamp time.Time
	Principal string // empty when no identity was resolved
	TagUID    string
	DoorID    int64
	Granted   bool
}

// Decision is the outcome of one (tag, door) evaluation
type Decision struct {
	Granted   bool
	Principal string
}

// HasGroup reports whether the user is a member of the named group
func (u *User) HasGroup(name string) bool {
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// UserRepository defines data access for cached users
type UserRepository interface {
	GetByPrincipal(ctx context.Context, principal string) (*User, error)
	GetByTag(ctx context.Context, tagUID string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, principal string) error
	List(ctx context.Context) ([]*User, error)
	Count(ctx context.Context) (int, error)
}

// GroupRepository defines data access for cached groups
type GroupRepository interface {
	// Ensure inserts the group if missing and reports whether it was created
	Ensure(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]*Group, error)
	// Delete removes the group and every door that references it
	Delete(ctx context.Context, name string) error
}

// DoorRepository defines data access for doors
type DoorRepository interface {
	GetByID(ctx context.Context, id int64) (*Door, error)
	Create(ctx context.Context, door *Door) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Door, error)
}

// AuditRepository is the append-only access log
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	// List returns entries newest first; limit <= 0 returns all of them
	List(ctx context.Context, limit int) ([]*AuditEntry, error)
}
