package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
)

type identityRepository struct {
	BaseRepository
}

func NewIdentityRepository(base BaseRepository) repository.IdentityRepository {
	return &identityRepository{base}
}

const identityColumns = `id, email, password_hash, metadata, created_at`

func (r *identityRepository) Create(ctx context.Context, identity *model.Identity) error {
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	identity.CreatedAt = time.Now()

	query := `
		INSERT INTO identities (id, email, password_hash, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		identity.Metadata,
		identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	var identity model.Identity
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	if err := r.db.GetContext(ctx, &identity, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	var identity model.Identity
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	if err := r.db.GetContext(ctx, &identity, query, id); err != nil {
		return nil, err
	}
	return &identity, nil
}
