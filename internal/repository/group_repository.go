package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
)

// GroupRepository implements domain.GroupRepository
type GroupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *sql.DB, logger *slog.Logger) *GroupRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupRepository{db: db, logger: logger}
}

// Ensure inserts the group when it is not cached yet
func (r *GroupRepository) Ensure(ctx context.Context, name string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO directory_groups (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		name,
	)
	if err != nil {
		r.logger.Error("failed to upsert group",
			slog.String("group", name),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("failed to upsert group: %w", mapDBError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows > 0, nil
}

// List returns all groups ordered by name
func (r *GroupRepository) List(ctx context.Context) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM directory_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		g := &domain.Group{}
		if err := rows.Scan(&g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Delete removes a group together with the doors it authorizes
func (r *GroupRepository) Delete(ctx context.Context, name string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM doors WHERE group_name = $1`, name); err != nil {
			return fmt.Errorf("failed to delete doors of group: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM directory_groups WHERE name = $1`, name)
		if err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
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
}

var _ domain.GroupRepository = (*GroupRepository)(nil)
