package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/psicare/manager-api/internal/repository"
)

// Repositories groups every postgres-backed repository over one pool.
type Repositories struct {
	Identities    repository.IdentityRepository
	Profiles      repository.ProfileRepository
	Patients      repository.PatientRepository
	Medications   repository.MedicationRepository
	Consultations repository.ConsultationRepository
	Documents     repository.DocumentRepository
	Assistants    repository.AssistantRepository
	Outbox        repository.OutboxRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Identities:    NewIdentityRepository(base),
		Profiles:      NewProfileRepository(base),
		Patients:      NewPatientRepository(base),
		Medications:   NewMedicationRepository(base),
		Consultations: NewConsultationRepository(base),
		Documents:     NewDocumentRepository(base),
		Assistants:    NewAssistantRepository(base),
		Outbox:        NewOutboxRepository(base),
	}
}
