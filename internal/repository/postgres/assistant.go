package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
)

type assistantRepository struct {
	BaseRepository
}

func NewAssistantRepository(base BaseRepository) repository.AssistantRepository {
	return &assistantRepository{base}
}

const assistantColumns = `id, full_name, specialty, email, phone, photo_url, created_at, updated_at`

func (r *assistantRepository) Create(ctx context.Context, a *model.Assistant) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO assistants (id, full_name, specialty, email, phone, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.FullName, a.Specialty, a.Email, a.Phone, a.PhotoURL, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create assistant: %w", err)
	}
	return nil
}

func (r *assistantRepository) Get(ctx context.Context, id uuid.UUID) (*model.Assistant, error) {
	var a model.Assistant
	query := `SELECT ` + assistantColumns + ` FROM assistants WHERE id = $1`
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assistantRepository) Update(ctx context.Context, a *model.Assistant) error {
	a.UpdatedAt = time.Now()
	query := `
		UPDATE assistants
		SET full_name = $1, specialty = $2, email = $3, phone = $4, photo_url = $5, updated_at = $6
		WHERE id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		a.FullName, a.Specialty, a.Email, a.Phone, a.PhotoURL, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assistant: %w", err)
	}
	return expectAffected(res)
}

func (r *assistantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assistants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assistant: %w", err)
	}
	return expectAffected(res)
}

func (r *assistantRepository) List(ctx context.Context) ([]*model.Assistant, error) {
	var assistants []*model.Assistant
	query := `SELECT ` + assistantColumns + ` FROM assistants ORDER BY full_name`
	if err := r.db.SelectContext(ctx, &assistants, query); err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}
	return assistants, nil
}
