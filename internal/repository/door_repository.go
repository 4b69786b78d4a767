package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
)

// DoorRepository implements domain.DoorRepository
type DoorRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDoorRepository creates a new door repository
func NewDoorRepository(db *sql.DB, logger *slog.Logger) *DoorRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DoorRepository{db: db, logger: logger}
}

// GetByID retrieves a door and its authorizing group
func (r *DoorRepository) GetByID(ctx context.Context, id int64) (*domain.Door, error) {
	door := &domain.Door{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, group_name FROM doors WHERE id = $1`, id,
	).Scan(&door.ID, &door.Group)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to get door",
			slog.Int64("door_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get door: %w", err)
	}
	return door, nil
}

// Create inserts a door; the group must already exist
func (r *DoorRepository) Create(ctx context.Context, door *domain.Door) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO doors (id, group_name) VALUES ($1, $2)`,
		door.ID, door.Group,
	)
	if err != nil {
		return fmt.Errorf("failed to create door: %w", mapDBError(err))
	}
	return nil
}

// Delete removes a door
func (r *DoorRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM doors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete door: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns all doors ordered by id
func (r *DoorRepository) List(ctx context.Context) ([]*domain.Door, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, group_name FROM doors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list doors: %w", err)
	}
	defer rows.Close()

	var doors []*domain.Door
	for rows.Next() {
		d := &domain.Door{}
		if err := rows.Scan(&d.ID, &d.Group); err != nil {
			return nil, fmt.Errorf("failed to scan door: %w", err)
		}
		doors = append(doors, d)
	}
	return doors, rows.Err()
}

var _ domain.DoorRepository = (*DoorRepository)(nil)
