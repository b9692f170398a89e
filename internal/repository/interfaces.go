package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
)

// All repository interfaces in one file
type (
	IdentityRepository interface {
		Create(ctx context.Context, identity *model.Identity) error
		GetByEmail(ctx context.Context, email string) (*model.Identity, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Identity, error)
	}

	// ProfileRepository has no Delete: profiles are never removed.
	ProfileRepository interface {
		Create(ctx context.Context, profile *model.Profile) error
		Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
		Update(ctx context.Context, profile *model.Profile) error
		List(ctx context.Context) ([]*model.Profile, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error)
	}

	MedicationRepository interface {
		Create(ctx context.Context, med *model.Medication) error
		CreateBatch(ctx context.Context, meds []*model.Medication) error
		Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
		Update(ctx context.Context, med *model.Medication) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Medication, error)
		List(ctx context.Context) ([]*model.Medication, error)
	}

	ConsultationRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error)
		ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*model.Consultation, error)
		// Save applies the diagnosis update, the consultation upsert and the
		// standing medication inserts as one transaction.
		Save(ctx context.Context, save *model.ConsultationSave) error
	}

	DocumentRepository interface {
		Create(ctx context.Context, doc *model.GeneratedDocument) error
		Get(ctx context.Context, id uuid.UUID) (*model.GeneratedDocument, error)
	}

	AssistantRepository interface {
		Create(ctx context.Context, assistant *model.Assistant) error
		Get(ctx context.Context, id uuid.UUID) (*model.Assistant, error)
		Update(ctx context.Context, assistant *model.Assistant) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Assistant, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
