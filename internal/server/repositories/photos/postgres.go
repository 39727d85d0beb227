package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/darkroomapp/darkroom/internal/common"
	"github.com/darkroomapp/darkroom/internal/dbx"
	"github.com/darkroomapp/darkroom/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Photo) error {
	query := `INSERT INTO photos (id, event_id, owner_label, storage_key, captured_at, confirmed)
	          VALUES ($1, $2, $3, $4, $5, false)`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.EventID, p.OwnerLabel, p.StorageKey, p.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to insert photo: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Confirm(ctx context.Context, id string) error {
	query := `UPDATE photos SET confirmed = true WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to confirm photo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT id, event_id, owner_label, storage_key, captured_at, confirmed, created_at
	          FROM photos WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	p := &models.Photo{}
	err := row.Scan(&p.ID, &p.EventID, &p.OwnerLabel, &p.StorageKey, &p.CapturedAt, &p.Confirmed, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select photo: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByEvent(ctx context.Context, eventID string, offset, limit int) ([]*models.Photo, error) {
	query := `SELECT id, event_id, owner_label, storage_key, captured_at, confirmed, created_at
	          FROM photos
	          WHERE event_id = $1 AND confirmed
	          ORDER BY captured_at ASC, id ASC
	          OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, eventID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("error selecting photos: %w", err)
	}
	defer rows.Close()

	var result []*models.Photo
	for rows.Next() {
		p := &models.Photo{}
		err := rows.Scan(&p.ID, &p.EventID, &p.OwnerLabel, &p.StorageKey, &p.CapturedAt, &p.Confirmed, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
