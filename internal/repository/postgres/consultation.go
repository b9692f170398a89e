package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
)

type consultationRepository struct {
	BaseRepository
}

func NewConsultationRepository(base BaseRepository) repository.ConsultationRepository {
	return &consultationRepository{base}
}

const consultationColumns = `id, patient_id, professional_id, user_id, date, time, next_date, diagnosis,
	complaints, evolution, summary, medicines, created_at, updated_at`

func (r *consultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	var c model.Consultation
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByPatient returns the most recent consultation first.
func (r *consultationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	var consultations []*model.Consultation
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE patient_id = $1 ORDER BY date DESC, time DESC`
	if err := r.db.SelectContext(ctx, &consultations, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}

func (r *consultationRepository) ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*model.Consultation, error) {
	if len(patientIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(patientIDs))
	for i, id := range patientIDs {
		ids[i] = id.String()
	}

	var consultations []*model.Consultation
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE patient_id = ANY($1::uuid[]) ORDER BY date DESC`
	if err := r.db.SelectContext(ctx, &consultations, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}

func (r *consultationRepository) Save(ctx context.Context, save *model.ConsultationSave) error {
	c := save.Consultation
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if save.PatientDiagnosis != nil {
			res, err := tx.ExecContext(ctx,
				`UPDATE patients SET diagnosis = $1, updated_at = $2 WHERE id = $3`,
				*save.PatientDiagnosis, time.Now(), c.PatientID,
			)
			if err != nil {
				return fmt.Errorf("failed to update patient diagnosis: %w", err)
			}
			if err := expectAffected(res); err != nil {
				return err
			}
		}

		if c.ID == uuid.Nil {
			if err := insertConsultation(ctx, tx, c); err != nil {
				return err
			}
		} else if err := updateConsultation(ctx, tx, c); err != nil {
			return err
		}

		for _, med := range save.Standing {
			if err := insertMedication(ctx, tx, med); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertConsultation(ctx context.Context, tx *sqlx.Tx, c *model.Consultation) error {
	c.ID = uuid.New()
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO consultations (
			id, patient_id, professional_id, user_id, date, time, next_date, diagnosis,
			complaints, evolution, summary, medicines, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := tx.ExecContext(ctx, query,
		c.ID,
		c.PatientID,
		c.ProfessionalID,
		c.UserID,
		c.Date,
		c.Time,
		c.NextDate,
		c.Diagnosis,
		c.Complaints,
		c.Evolution,
		c.Summary,
		c.Medicines,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	return nil
}

func updateConsultation(ctx context.Context, tx *sqlx.Tx, c *model.Consultation) error {
	c.UpdatedAt = time.Now()
	query := `
		UPDATE consultations
		SET date = $1, time = $2, next_date = $3, diagnosis = $4, complaints = $5,
			evolution = $6, summary = $7, medicines = $8, updated_at = $9
		WHERE id = $10 AND patient_id = $11
	`
	res, err := tx.ExecContext(ctx, query,
		c.Date,
		c.Time,
		c.NextDate,
		c.Diagnosis,
		c.Complaints,
		c.Evolution,
		c.Summary,
		c.Medicines,
		c.UpdatedAt,
		c.ID,
		c.PatientID,
	)
	if err != nil {
		return fmt.Errorf("failed to update consultation: %w", err)
	}
	return expectAffected(res)
}
