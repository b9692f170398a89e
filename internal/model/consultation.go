package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ConsultationMedicine is a prescribed item frozen into a consultation at save
// time. It never follows later edits to standing medications.
type ConsultationMedicine struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Quantity  int    `json:"quantity"`
}

// ConsultationMedicines is stored as a jsonb array.
type ConsultationMedicines []ConsultationMedicine

func (m ConsultationMedicines) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

func (m *ConsultationMedicines) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = ConsultationMedicines{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ConsultationMedicines", value)
	}
	return json.Unmarshal(raw, m)
}

// Consultation stores each clinical section separately. Summary is the
// composed presentation text kept alongside for printing and listing.
type Consultation struct {
	Base
	PatientID      uuid.UUID             `json:"patient_id" db:"patient_id"`
	ProfessionalID *uuid.UUID            `json:"professional_id,omitempty" db:"professional_id"`
	UserID         uuid.UUID             `json:"user_id" db:"user_id"`
	Date           Date                  `json:"date" db:"date"`
	Time           string                `json:"time" db:"time"`
	NextDate       Date                  `json:"next_date" db:"next_date"`
	Diagnosis      string                `json:"diagnosis" db:"diagnosis"`
	Complaints     string                `json:"complaints" db:"complaints"`
	Evolution      string                `json:"evolution" db:"evolution"`
	Summary        string                `json:"summary" db:"summary"`
	Medicines      ConsultationMedicines `json:"medicines" db:"medicines"`
}

// ConsultationSave is the unit of work persisted atomically when a
// consultation is saved.
type ConsultationSave struct {
	Consultation *Consultation
	// PatientDiagnosis is set when the patient's stored diagnosis changes.
	PatientDiagnosis *string
	// Standing holds the medications appended to the patient's standing list.
	Standing []*Medication
}

type ConsultationMedicineRequest struct {
	Name      string `json:"name" binding:"required"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Quantity  int    `json:"quantity" binding:"min=0"`
}

type ConsultationSaveRequest struct {
	ID             string                        `json:"id" binding:"omitempty,uuid"`
	Date           string                        `json:"date" binding:"required,civildate"`
	Time           string                        `json:"time" binding:"omitempty,clock"`
	NextDate       string                        `json:"next_date" binding:"omitempty,civildate"`
	Diagnosis      string                        `json:"diagnosis"`
	Complaints     string                        `json:"complaints"`
	Evolution      string                        `json:"evolution"`
	Medicines      []ConsultationMedicineRequest `json:"medicines" binding:"dive"`
	SyncToStanding bool                          `json:"sync_to_standing"`
}

// ConsultationSaveResult carries the refreshed lists after a save.
type ConsultationSaveResult struct {
	Consultation  *Consultation   `json:"consultation"`
	Patient       *Patient        `json:"patient"`
	Consultations []*Consultation `json:"consultations"`
	Medications   []*Medication   `json:"medications"`
}
