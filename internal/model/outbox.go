package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Domain event types written to the outbox.
const (
	EventPatientCreated    = "PATIENT_CREATED"
	EventPatientUpdated    = "PATIENT_UPDATED"
	EventConsultationSaved = "CONSULTATION_SAVED"
	EventDocumentGenerated = "DOCUMENT_GENERATED"
	EventMedicationChanged = "MEDICATION_CHANGED"
	EventProfileUpdated    = "PROFILE_UPDATED"
	EventAssistantChanged  = "ASSISTANT_CHANGED"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Session change notifications.
const (
	SessionSignedIn  = "SIGNED_IN"
	SessionSignedOut = "SIGNED_OUT"
)

// SessionEvent is published whenever an identity signs in or out.
type SessionEvent struct {
	Type       string    `json:"type"`
	IdentityID uuid.UUID `json:"identity_id"`
	At         time.Time `json:"at"`
}
