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

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

const patientColumns = `id, user_id, professional_id, full_name, date_of_birth, diagnosis, notes, phone,
	email, address, cpf, sus_number, sex, status, photo_url, created_at, updated_at`

func (r *patientRepository) Create(ctx context.Context, p *model.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO patients (
			id, user_id, professional_id, full_name, date_of_birth, diagnosis, notes, phone,
			email, address, cpf, sus_number, sex, status, photo_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.ProfessionalID,
		p.FullName,
		p.DateOfBirth,
		p.Diagnosis,
		p.Notes,
		p.Phone,
		p.Email,
		p.Address,
		p.CPF,
		p.SUSNumber,
		p.Sex,
		p.Status,
		p.PhotoURL,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var p model.Patient
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update rewrites every mutable field. The creator is never changed.
func (r *patientRepository) Update(ctx context.Context, p *model.Patient) error {
	p.UpdatedAt = time.Now()
	query := `
		UPDATE patients
		SET professional_id = $1, full_name = $2, date_of_birth = $3, diagnosis = $4, notes = $5,
			phone = $6, email = $7, address = $8, cpf = $9, sus_number = $10, sex = $11,
			status = $12, photo_url = $13, updated_at = $14
		WHERE id = $15
	`
	res, err := r.db.ExecContext(ctx, query,
		p.ProfessionalID,
		p.FullName,
		p.DateOfBirth,
		p.Diagnosis,
		p.Notes,
		p.Phone,
		p.Email,
		p.Address,
		p.CPF,
		p.SUSNumber,
		p.Sex,
		p.Status,
		p.PhotoURL,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return expectAffected(res)
}

// List orders by name. With VisibleTo set, only patients assigned to or
// created by that identity are returned.
func (r *patientRepository) List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.VisibleTo != nil {
		args = append(args, *filter.VisibleTo)
		conditions = append(conditions, fmt.Sprintf("(professional_id = $%d OR user_id = $%d)", len(args), len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
		conditions = append(conditions, fmt.Sprintf("full_name ILIKE $%d", len(args)))
	}

	query := `SELECT ` + patientColumns + ` FROM patients`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY full_name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}
