package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imemory/server/internal/model"
)

type noteRepo struct {
	db *sql.DB
}

// NewNoteRepo creates a Postgres-backed NoteRepo
func NewNoteRepo(db *sql.DB) NoteRepo {
	return &noteRepo{db: db}
}

// Create inserts a note and assigns its ID and date
func (r *noteRepo) Create(ctx context.Context, n *model.Note) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Date.IsZero() {
		n.Date = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, title, description, tag, image_url, image_public_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.Title, n.Description, n.Tag, n.ImageURL, n.ImagePublicID, n.Date)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// GetByID retrieves a note by ID
func (r *noteRepo) GetByID(ctx context.Context, id string) (model.Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Note{}, ErrNotFound
	}
	var n model.Note
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, tag, image_url, image_public_id, created_at
		FROM notes WHERE id = $1
	`, id).Scan(&n.ID, &n.UserID, &n.Title, &n.Description, &n.Tag, &n.ImageURL, &n.ImagePublicID, &n.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Note{}, ErrNotFound
		}
		return model.Note{}, fmt.Errorf("failed to query note: %w", err)
	}
	return n, nil
}

// ListByUser returns the user's notes, oldest first
func (r *noteRepo) ListByUser(ctx context.Context, userID string) ([]model.Note, error) {
	notes := []model.Note{}
	if _, err := uuid.Parse(userID); err != nil {
		return notes, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, tag, image_url, image_public_id, created_at
		FROM notes WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Description, &n.Tag, &n.ImageURL, &n.ImagePublicID, &n.Date); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// Update overwrites the editable fields of a note
func (r *noteRepo) Update(ctx context.Context, n *model.Note) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notes SET title = $2, description = $3, tag = $4, image_url = $5, image_public_id = $6
		WHERE id = $1
	`, n.ID, n.Title, n.Description, n.Tag, n.ImageURL, n.ImagePublicID)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a note
func (r *noteRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}
