package consultation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
	"github.com/psicare/manager-api/internal/service/event"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/metrics"
)

// PatientLookup resolves a patient the caller is allowed to see.
type PatientLookup interface {
	Get(ctx context.Context, caller *model.Principal, id uuid.UUID) (*model.Patient, error)
}

// Medicine operations accepted by ApplyMedicineOp.
const (
	OpAddCustom   = "add_custom"
	OpAddStanding = "add_standing"
	OpRemove      = "remove"
)

// MedicineOp edits the medicine list of a draft held by the client.
type MedicineOp struct {
	Draft        Draft                              `json:"draft"`
	Op           string                             `json:"op" binding:"required,oneof=add_custom add_standing remove"`
	Medicine     *model.ConsultationMedicineRequest `json:"medicine"`
	MedicationID string                             `json:"medication_id"`
	Index        int                                `json:"index"`
}

type Service struct {
	patients       PatientLookup
	repo           repository.ConsultationRepository
	medicationRepo repository.MedicationRepository
	events         event.Emitter
	logger         *logger.Logger
	metrics        *metrics.Metrics
	location       *time.Location
	now            func() time.Time
}

func NewService(
	patients PatientLookup,
	repo repository.ConsultationRepository,
	medicationRepo repository.MedicationRepository,
	events event.Emitter,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	location *time.Location,
) *Service {
	if location == nil {
		location = time.Local
	}
	return &Service{
		patients:       patients,
		repo:           repo,
		medicationRepo: medicationRepo,
		events:         events,
		logger:         logger,
		metrics:        metrics,
		location:       location,
		now:            time.Now,
	}
}

// List returns the patient's consultations, most recent first.
func (s *Service) List(ctx context.Context, caller *model.Principal, patientID uuid.UUID) ([]*model.Consultation, error) {
	if _, err := s.patients.Get(ctx, caller, patientID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if list == nil {
		list = []*model.Consultation{}
	}
	return list, nil
}

func (s *Service) NewDraft(ctx context.Context, caller *model.Principal, patientID uuid.UUID) (*Draft, error) {
	p, err := s.patients.Get(ctx, caller, patientID)
	if err != nil {
		return nil, err
	}
	return OpenNew(p, s.now().In(s.location)), nil
}

func (s *Service) ExistingDraft(ctx context.Context, caller *model.Principal, consultationID uuid.UUID) (*Draft, error) {
	c, err := s.visibleConsultation(ctx, caller, consultationID)
	if err != nil {
		return nil, err
	}
	return OpenExisting(c), nil
}

// ApplyMedicineOp edits the draft's medicine list. A rejected edit leaves the
// list unchanged.
func (s *Service) ApplyMedicineOp(ctx context.Context, caller *model.Principal, op *MedicineOp) (*Draft, error) {
	d := op.Draft
	d.Medicines = append([]model.ConsultationMedicine(nil), op.Draft.Medicines...)

	var err error
	switch op.Op {
	case OpAddCustom:
		if op.Medicine == nil {
			return nil, apperrors.BadRequest("medicine is required", nil)
		}
		err = d.AddCustomMedicine(model.ConsultationMedicine{
			Name:      op.Medicine.Name,
			Dosage:    op.Medicine.Dosage,
			Frequency: op.Medicine.Frequency,
			Quantity:  op.Medicine.Quantity,
		})
	case OpAddStanding:
		med, lookupErr := s.standingMedication(ctx, caller, d.PatientID, op.MedicationID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		err = d.AddFromStanding(med)
	case OpRemove:
		err = d.RemoveMedicine(op.Index)
	default:
		return nil, apperrors.BadRequest("unknown medicine operation", nil)
	}

	if err != nil {
		if errors.Is(err, ErrDuplicateMedicine) {
			return nil, apperrors.Conflict(err.Error(), err)
		}
		return nil, apperrors.BadRequest(err.Error(), err)
	}
	if d.Medicines == nil {
		d.Medicines = []model.ConsultationMedicine{}
	}
	return &d, nil
}

func (s *Service) standingMedication(ctx context.Context, caller *model.Principal, patientID uuid.UUID, rawID string) (*model.Medication, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid medication_id", err)
	}
	if _, err := s.patients.Get(ctx, caller, patientID); err != nil {
		return nil, err
	}
	med, err := s.medicationRepo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.FromStorage("medication", err)
	}
	if med.PatientID == nil || *med.PatientID != patientID {
		return nil, apperrors.NotFound("medication", nil)
	}
	return med, nil
}

// DraftFromRequest turns a submitted form into a draft ready to save.
func DraftFromRequest(patientID uuid.UUID, req *model.ConsultationSaveRequest) (*Draft, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil || date.IsZero() {
		return nil, apperrors.BadRequest("invalid date", err)
	}
	next, err := model.ParseDate(req.NextDate)
	if err != nil {
		return nil, apperrors.BadRequest("invalid next_date", err)
	}
	clock := strings.TrimSpace(req.Time)
	if clock == "" {
		clock = defaultTime
	}
	if _, err := time.Parse(model.ClockLayout, clock); err != nil {
		return nil, apperrors.BadRequest("invalid time", err)
	}

	d := &Draft{
		State:          StateDraftingNew,
		PatientID:      patientID,
		Date:           date,
		Time:           clock,
		NextDate:       next,
		Diagnosis:      req.Diagnosis,
		Complaints:     req.Complaints,
		Evolution:      req.Evolution,
		Medicines:      make([]model.ConsultationMedicine, 0, len(req.Medicines)),
		SyncToStanding: req.SyncToStanding,
	}
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			return nil, apperrors.BadRequest("invalid id", err)
		}
		d.ConsultationID = &id
		d.State = StateDraftingExisting
	}
	for _, m := range req.Medicines {
		if err := d.AddCustomMedicine(model.ConsultationMedicine{
			Name:      m.Name,
			Dosage:    m.Dosage,
			Frequency: m.Frequency,
			Quantity:  m.Quantity,
		}); err != nil {
			return nil, apperrors.BadRequest(err.Error(), err)
		}
	}
	return d, nil
}

// Save persists the draft. The patient diagnosis change, the consultation
// upsert and the standing medication inserts commit together.
func (s *Service) Save(ctx context.Context, caller *model.Principal, d *Draft) (*model.ConsultationSaveResult, error) {
	if err := d.beginSave(); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}
	result, err := s.save(ctx, caller, d)
	if err != nil {
		d.abortSave()
		return nil, err
	}
	d.Close()
	return result, nil
}

func (s *Service) save(ctx context.Context, caller *model.Principal, d *Draft) (*model.ConsultationSaveResult, error) {
	if d.Date.IsZero() {
		return nil, apperrors.BadRequest("date is required", nil)
	}

	patient, err := s.patients.Get(ctx, caller, d.PatientID)
	if err != nil {
		return nil, err
	}

	save := &model.ConsultationSave{}
	diagnosis := strings.TrimSpace(d.Diagnosis)
	if diagnosis != "" && diagnosis != patient.Diagnosis {
		save.PatientDiagnosis = &diagnosis
	}

	c := &model.Consultation{
		PatientID:      patient.ID,
		ProfessionalID: patient.ProfessionalID,
		UserID:         caller.ID,
	}
	mode := "new"
	if d.ConsultationID != nil {
		existing, err := s.repo.Get(ctx, *d.ConsultationID)
		if err != nil {
			return nil, apperrors.FromStorage("consultation", err)
		}
		if existing.PatientID != patient.ID {
			return nil, apperrors.NotFound("consultation", nil)
		}
		c = existing
		mode = "update"
	}

	c.Date = d.Date
	c.Time = d.Time
	c.NextDate = d.NextDate
	if diagnosis != "" {
		c.Diagnosis = diagnosis
	}
	c.Complaints = d.Complaints
	c.Evolution = d.Evolution
	c.Summary = ComposeSummary(d.Sections())
	c.Medicines = append(model.ConsultationMedicines{}, d.Medicines...)
	save.Consultation = c

	if d.SyncToStanding && len(d.Medicines) > 0 {
		for _, m := range d.Medicines {
			pid := patient.ID
			save.Standing = append(save.Standing, &model.Medication{
				PatientID: &pid,
				Name:      m.Name,
				Dosage:    m.Dosage,
				Frequency: m.Frequency,
				Stock:     m.Quantity,
				StartDate: d.Date,
			})
		}
	}

	if err := s.repo.Save(ctx, save); err != nil {
		return nil, apperrors.FromStorage("consultation", err)
	}
	s.metrics.ConsultationsSaved.WithLabelValues(mode).Inc()

	event.EmitLogged(ctx, s.events, s.logger, model.EventConsultationSaved, map[string]interface{}{
		"consultation_id": c.ID,
		"patient_id":      patient.ID,
		"user_id":         caller.ID,
		"mode":            mode,
		"synced":          len(save.Standing),
	})

	if save.PatientDiagnosis != nil {
		patient.Diagnosis = *save.PatientDiagnosis
	}
	consultations, err := s.repo.ListByPatient(ctx, patient.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	meds, err := s.medicationRepo.ListByPatient(ctx, patient.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &model.ConsultationSaveResult{
		Consultation:  c,
		Patient:       patient,
		Consultations: consultations,
		Medications:   meds,
	}, nil
}

func (s *Service) visibleConsultation(ctx context.Context, caller *model.Principal, id uuid.UUID) (*model.Consultation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.FromStorage("consultation", err)
	}
	if _, err := s.patients.Get(ctx, caller, c.PatientID); err != nil {
		return nil, apperrors.NotFound("consultation", nil)
	}
	return c, nil
}
