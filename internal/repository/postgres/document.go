package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
)

type documentRepository struct {
	BaseRepository
}

func NewDocumentRepository(base BaseRepository) repository.DocumentRepository {
	return &documentRepository{base}
}

// Create assigns the public id. There is no Update: documents are immutable.
func (r *documentRepository) Create(ctx context.Context, doc *model.GeneratedDocument) error {
	doc.ID = uuid.NewString()
	doc.CreatedAt = time.Now()
	if len(doc.ContentData) == 0 {
		doc.ContentData = []byte("{}")
	}

	query := `
		INSERT INTO generated_documents (
			id, type, content_data, patient_name, patient_cpf, doctor_name, doctor_crm, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.Type,
		[]byte(doc.ContentData),
		doc.PatientName,
		doc.PatientCPF,
		doc.DoctorName,
		doc.DoctorCRM,
		doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*model.GeneratedDocument, error) {
	var doc model.GeneratedDocument
	query := `
		SELECT id, type, content_data, patient_name, patient_cpf, doctor_name, doctor_crm, created_at
		FROM generated_documents
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}
