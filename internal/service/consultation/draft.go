package consultation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
)

// State of a consultation draft.
type State string

const (
	StateClosed           State = "closed"
	StateDraftingNew      State = "drafting_new"
	StateDraftingExisting State = "drafting_existing"
	StateSaving           State = "saving"
)

const (
	defaultNextVisitDays = 30
	defaultTime          = "00:00"
)

var (
	ErrDuplicateMedicine = errors.New("medicine already in consultation")
	ErrMedicineIndex     = errors.New("medicine index out of range")
	ErrMedicineName      = errors.New("medicine name is required")
	ErrNotDrafting       = errors.New("consultation is not being edited")
)

// Draft is the editable form of one consultation.
type Draft struct {
	State          State                        `json:"state"`
	ConsultationID *uuid.UUID                   `json:"consultation_id,omitempty"`
	PatientID      uuid.UUID                    `json:"patient_id"`
	Date           model.Date                   `json:"date"`
	Time           string                       `json:"time"`
	NextDate       model.Date                   `json:"next_date"`
	Diagnosis      string                       `json:"diagnosis"`
	Complaints     string                       `json:"complaints"`
	Evolution      string                       `json:"evolution"`
	Medicines      []model.ConsultationMedicine `json:"medicines"`
	SyncToStanding bool                         `json:"sync_to_standing"`

	resume State
}

// OpenNew seeds a draft for a new visit at now, in the clinic's zone.
func OpenNew(patient *model.Patient, now time.Time) *Draft {
	today := model.DateOf(now)
	return &Draft{
		State:          StateDraftingNew,
		PatientID:      patient.ID,
		Date:           today,
		Time:           now.Format(model.ClockLayout),
		NextDate:       today.AddDays(defaultNextVisitDays),
		Diagnosis:      patient.Diagnosis,
		Medicines:      []model.ConsultationMedicine{},
		SyncToStanding: true,
	}
}

// OpenExisting seeds a draft from a stored consultation. The diagnosis is
// left blank, so re-saving without edits reproduces the stored summary
// without a diagnosis block.
func OpenExisting(c *model.Consultation) *Draft {
	id := c.ID
	t := c.Time
	if t == "" {
		t = defaultTime
	}
	meds := make([]model.ConsultationMedicine, len(c.Medicines))
	copy(meds, c.Medicines)

	return &Draft{
		State:          StateDraftingExisting,
		ConsultationID: &id,
		PatientID:      c.PatientID,
		Date:           c.Date,
		Time:           t,
		NextDate:       c.NextDate,
		Complaints:     c.Complaints,
		Evolution:      c.Evolution,
		Medicines:      meds,
		SyncToStanding: false,
	}
}

func (d *Draft) Drafting() bool {
	return d.State == StateDraftingNew || d.State == StateDraftingExisting
}

func (d *Draft) AddCustomMedicine(m model.ConsultationMedicine) error {
	if !d.Drafting() {
		return ErrNotDrafting
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return ErrMedicineName
	}
	if m.Quantity < 0 {
		m.Quantity = 0
	}
	d.Medicines = append(d.Medicines, m)
	return nil
}

// AddFromStanding copies a standing medication into the draft. A name
// already present, compared case-insensitively, is rejected.
func (d *Draft) AddFromStanding(med *model.Medication) error {
	if !d.Drafting() {
		return ErrNotDrafting
	}
	for _, m := range d.Medicines {
		if strings.EqualFold(strings.TrimSpace(m.Name), strings.TrimSpace(med.Name)) {
			return fmt.Errorf("%w: %s", ErrDuplicateMedicine, med.Name)
		}
	}
	d.Medicines = append(d.Medicines, model.ConsultationMedicine{
		Name:      med.Name,
		Dosage:    med.Dosage,
		Frequency: med.Frequency,
		Quantity:  med.Stock,
	})
	return nil
}

func (d *Draft) RemoveMedicine(index int) error {
	if !d.Drafting() {
		return ErrNotDrafting
	}
	if index < 0 || index >= len(d.Medicines) {
		return ErrMedicineIndex
	}
	d.Medicines = append(d.Medicines[:index:index], d.Medicines[index+1:]...)
	return nil
}

func (d *Draft) Sections() Sections {
	return Sections{
		Diagnosis:  d.Diagnosis,
		Complaints: d.Complaints,
		Evolution:  d.Evolution,
		Medicines:  d.Medicines,
	}
}

func (d *Draft) beginSave() error {
	if !d.Drafting() {
		return ErrNotDrafting
	}
	d.resume = d.State
	d.State = StateSaving
	return nil
}

// abortSave returns a failed save to the drafting state it came from.
func (d *Draft) abortSave() {
	if d.State == StateSaving {
		d.State = d.resume
	}
}

func (d *Draft) Close() {
	d.State = StateClosed
}
