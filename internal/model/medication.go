package model

import (
	"github.com/google/uuid"
)

// Medication is a standing medication. A nil PatientID marks a general
// inventory item.
type Medication struct {
	Base
	PatientID *uuid.UUID `json:"patient_id" db:"patient_id"`
	Name      string     `json:"name" db:"name"`
	Dosage    string     `json:"dosage" db:"dosage"`
	Frequency string     `json:"frequency" db:"frequency"`
	Stock     int        `json:"stock" db:"stock"`
	StartDate Date       `json:"start_date" db:"start_date"`
	EndDate   Date       `json:"end_date" db:"end_date"`
}

type MedicationRequest struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Stock     int    `json:"stock" binding:"min=0"`
	StartDate string `json:"start_date" binding:"omitempty,civildate"`
	EndDate   string `json:"end_date" binding:"omitempty,civildate"`
}
