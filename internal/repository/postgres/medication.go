package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
)

type medicationRepository struct {
	BaseRepository
}

func NewMedicationRepository(base BaseRepository) repository.MedicationRepository {
	return &medicationRepository{base}
}

const medicationColumns = `id, patient_id, name, dosage, frequency, stock, start_date, end_date, created_at, updated_at`

func (r *medicationRepository) Create(ctx context.Context, med *model.Medication) error {
	return insertMedication(ctx, r.db, med)
}

func (r *medicationRepository) CreateBatch(ctx context.Context, meds []*model.Medication) error {
	if len(meds) == 0 {
		return nil
	}
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, med := range meds {
			if err := insertMedication(ctx, tx, med); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	var med model.Medication
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`
	if err := r.db.GetContext(ctx, &med, query, id); err != nil {
		return nil, err
	}
	return &med, nil
}

func (r *medicationRepository) Update(ctx context.Context, med *model.Medication) error {
	med.UpdatedAt = time.Now()
	query := `
		UPDATE medications
		SET name = $1, dosage = $2, frequency = $3, stock = $4, start_date = $5, end_date = $6, updated_at = $7
		WHERE id = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		med.Name, med.Dosage, med.Frequency, med.Stock, med.StartDate, med.EndDate, med.UpdatedAt, med.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	return expectAffected(res)
}

func (r *medicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	return expectAffected(res)
}

func (r *medicationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Medication, error) {
	var meds []*model.Medication
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE patient_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &meds, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

func (r *medicationRepository) List(ctx context.Context) ([]*model.Medication, error) {
	var meds []*model.Medication
	query := `SELECT ` + medicationColumns + ` FROM medications ORDER BY name`
	if err := r.db.SelectContext(ctx, &meds, query); err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

func insertMedication(ctx context.Context, exec sqlx.ExecerContext, med *model.Medication) error {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	now := time.Now()
	med.CreatedAt = now
	med.UpdatedAt = now

	query := `
		INSERT INTO medications (id, patient_id, name, dosage, frequency, stock, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := exec.ExecContext(ctx, query,
		med.ID,
		med.PatientID,
		med.Name,
		med.Dosage,
		med.Frequency,
		med.Stock,
		med.StartDate,
		med.EndDate,
		med.CreatedAt,
		med.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}
