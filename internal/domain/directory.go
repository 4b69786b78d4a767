package domain

import (
	"context"
	"strings"
	"time"
)

// DirectoryEntry is a single search result as (distinguished name, attributes)
type DirectoryEntry struct {
	DN         string
	Attributes map[string][]string
}

// Values returns an attribute's values; names match case-insensitively
func (e DirectoryEntry) Values(name string) []string {
	if v, ok := e.Attributes[name]; ok {
		return v
	}
	for k, v := range e.Attributes {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// First returns the first value of an attribute, or "" when absent
func (e DirectoryEntry) First(name string) string {
	if v := e.Values(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Directory opens bound sessions against the upstream directory service
type Directory interface {
	Open(ctx context.Context) (DirectorySession, error)
}

// DirectorySession is a bound directory connection
type DirectorySession interface {
	// Search returns every entry of the given object class under baseDN
	Search(ctx context.Context, baseDN, objectClass string) ([]DirectoryEntry, error)
	Close() error
}

// ReconcileReport summarizes one reconciliation cycle
type ReconcileReport struct {
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
	UsersAdded     int           `json:"usersAdded"`
	UsersUpdated   int           `json:"usersUpdated"`
	UsersUnchanged int           `json:"usersUnchanged"`
	UsersRemoved   int           `json:"usersRemoved"`
	UsersSkipped   int           `json:"usersSkipped"`
	GroupsAdded    int           `json:"groupsAdded"`
	GroupsExisting int           `json:"groupsExisting"`
	Failures       int           `json:"failures"`
}

// Writes is the number of cache mutations the cycle performed
func (r *ReconcileReport) Writes() int {
	return r.UsersAdded + r.UsersUpdated + r.UsersRemoved + r.GroupsAdded
}
