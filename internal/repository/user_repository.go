package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
)

// UserRepository implements domain.UserRepository over database/sql.
// Memberships live in user_memberships and are rewritten with the user row
// inside one transaction.
type UserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByPrincipal retrieves a user and its memberships
func (r *UserRepository) GetByPrincipal(ctx context.Context, principal string) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT principal, tag_uid FROM directory_users WHERE principal = $1`,
		principal,
	).Scan(&user.Principal, &user.TagUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Groups, err = r.groupsOf(ctx, principal); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByTag retrieves the user holding a tag credential (exact match)
func (r *UserRepository) GetByTag(ctx context.Context, tagUID string) (*domain.User, error) {
	if tagUID == "" {
		return nil, domain.ErrNotFound
	}

	user := &domain.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT principal, tag_uid FROM directory_users WHERE tag_uid = $1`,
		tagUID,
	).Scan(&user.Principal, &user.TagUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to get user by tag", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get user by tag: %w", err)
	}

	if user.Groups, err = r.groupsOf(ctx, user.Principal); err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a user with its memberships
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO directory_users (principal, tag_uid) VALUES ($1, $2)`,
			user.Principal, user.TagUID,
		); err != nil {
			return r.writeError(err)
		}
		return insertMemberships(ctx, tx, user.Principal, user.Groups)
	})
	if err != nil {
		r.logger.Error("failed to create user",
			slog.String("principal", user.Principal),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update replaces the tag credential and membership set of an existing user
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE directory_users SET tag_uid = $1 WHERE principal = $2`,
			user.TagUID, user.Principal,
		)
		if err != nil {
			return r.writeError(err)
		}
		if rows, err := result.RowsAffected(); err == nil && rows == 0 {
			return domain.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_memberships WHERE principal = $1`,
			user.Principal,
		); err != nil {
			return err
		}
		return insertMemberships(ctx, tx, user.Principal, user.Groups)
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user; memberships cascade
func (r *UserRepository) Delete(ctx context.Context, principal string) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_memberships WHERE principal = $1`, principal,
		); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM directory_users WHERE principal = $1`, principal,
		)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// List returns every cached user ordered by principal
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT principal, tag_uid FROM directory_users ORDER BY principal`,
	)
	if err != nil {
		r.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var users []*domain.User
	byPrincipal := make(map[string]*domain.User)
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(&user.Principal, &user.TagUID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
		byPrincipal[user.Principal] = user
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	mrows, err := r.db.QueryContext(ctx,
		`SELECT principal, group_name FROM user_memberships`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var principal, group string
		if err := mrows.Scan(&principal, &group); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		if user, ok := byPrincipal[principal]; ok {
			user.Groups = append(user.Groups, group)
		}
	}
	if err := mrows.Err(); err != nil {
		return nil, err
	}
	// byte order, independent of the server collation
	for _, user := range users {
		sort.Strings(user.Groups)
	}
	return users, nil
}

// Count returns the number of cached users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM directory_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) groupsOf(ctx context.Context, principal string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_name FROM user_memberships WHERE principal = $1`,
		principal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get memberships: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(groups)
	return groups, nil
}

// writeError separates a duplicate tag from other constraint failures
func (r *UserRepository) writeError(err error) error {
	mapped := mapDBError(err)
	if errors.Is(mapped, domain.ErrConflict) && strings.Contains(err.Error(), "tag_uid") {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateTag, err)
	}
	return mapped
}

func insertMemberships(ctx context.Context, tx *sql.Tx, principal string, groups []string) error {
	seen := make(map[string]bool, len(groups))
	sorted := append([]string(nil), groups...)
	sort.Strings(sorted)
	for _, g := range sorted {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_memberships (principal, group_name) VALUES ($1, $2)`,
			principal, g,
		); err != nil {
			return fmt.Errorf("failed to insert membership %q: %w", g, err)
		}
	}
	return nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
