package model

import (
	"github.com/google/uuid"
)

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "Active"
	PatientStatusInactive PatientStatus = "Inactive"
)

const DefaultPatientSex = "Masculino"

// Patient is visible only to its creator, its assigned practitioner or an
// administrator.
type Patient struct {
	Base
	UserID         uuid.UUID     `json:"user_id" db:"user_id"`
	ProfessionalID *uuid.UUID    `json:"professional_id,omitempty" db:"professional_id"`
	FullName       string        `json:"full_name" db:"full_name"`
	DateOfBirth    Date          `json:"date_of_birth" db:"date_of_birth"`
	Diagnosis      string        `json:"diagnosis" db:"diagnosis"`
	Notes          string        `json:"notes" db:"notes"`
	Phone          string        `json:"phone" db:"phone"`
	Email          string        `json:"email" db:"email"`
	Address        string        `json:"address" db:"address"`
	CPF            string        `json:"cpf" db:"cpf"`
	SUSNumber      string        `json:"sus_number" db:"sus_number"`
	Sex            string        `json:"sex" db:"sex"`
	Status         PatientStatus `json:"status" db:"status"`
	PhotoURL       string        `json:"photo_url" db:"photo_url"`
}

// VisibleTo implements the registry visibility rule.
func (p *Patient) VisibleTo(caller *Principal) bool {
	if caller == nil {
		return false
	}
	if caller.CanSeeAllPatients() {
		return true
	}
	if p.UserID == caller.ID {
		return true
	}
	return p.ProfessionalID != nil && *p.ProfessionalID == caller.ID
}

// RedactFor returns the patient as caller may read it. Assistants never see
// clinical notes; p itself is left untouched.
func (p *Patient) RedactFor(caller *Principal) *Patient {
	if caller == nil || !caller.Role.IsAssistant() || p.Notes == "" {
		return p
	}
	cp := *p
	cp.Notes = ""
	return &cp
}

// PatientFilter scopes registry queries. A nil VisibleTo lists everything.
type PatientFilter struct {
	VisibleTo *uuid.UUID
	Search    string
	Limit     int
}

type PatientRequest struct {
	FullName           string              `json:"full_name" binding:"required"`
	DateOfBirth        string              `json:"date_of_birth" binding:"required,civildate"`
	Phone              string              `json:"phone" binding:"required"`
	Diagnosis          string              `json:"diagnosis"`
	Notes              string              `json:"notes"`
	Email              string              `json:"email" binding:"omitempty,email"`
	Address            string              `json:"address"`
	CPF                string              `json:"cpf"`
	SUSNumber          string              `json:"sus_number"`
	Sex                string              `json:"sex"`
	Status             PatientStatus       `json:"status" binding:"omitempty,oneof=Active Inactive"`
	PhotoURL           string              `json:"photo_url"`
	ProfessionalID     string              `json:"professional_id" binding:"omitempty,uuid"`
	InitialMedications []MedicationRequest `json:"initial_medications"`
}

// PatientDetail is the registry detail view: the patient and both dependent
// lists.
type PatientDetail struct {
	Patient       *Patient        `json:"patient"`
	Consultations []*Consultation `json:"consultations"`
	Medications   []*Medication   `json:"medications"`
}
