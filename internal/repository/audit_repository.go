package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
)

// AuditRepository implements the append-only access log
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRepository{db: db, logger: logger}
}

// Append writes one entry and fills in its assigned id
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	principal := sql.NullString{String: entry.Principal, Valid: entry.Principal != ""}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO access_log (created_at, principal, tag_uid, door_id, granted)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		entry.Timestamp.UTC(), principal, entry.TagUID, entry.DoorID, entry.Granted,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("failed to append audit entry",
			slog.Int64("door_id", entry.DoorID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// List returns entries newest first
func (r *AuditRepository) List(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	query := `SELECT id, created_at, principal, tag_uid, door_id, granted
		FROM access_log ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		e := &domain.AuditEntry{}
		var principal sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &principal, &e.TagUID, &e.DoorID, &e.Granted); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Principal = principal.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.AuditRepository = (*AuditRepository)(nil)
