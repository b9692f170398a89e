package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
	"github.com/psicare/manager-api/internal/service/event"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
)

type Service struct {
	repo             repository.PatientRepository
	medicationRepo   repository.MedicationRepository
	consultationRepo repository.ConsultationRepository
	events           event.Emitter
	logger           *logger.Logger
}

func NewService(
	repo repository.PatientRepository,
	medicationRepo repository.MedicationRepository,
	consultationRepo repository.ConsultationRepository,
	events event.Emitter,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:             repo,
		medicationRepo:   medicationRepo,
		consultationRepo: consultationRepo,
		events:           events,
		logger:           logger,
	}
}

// List returns the patients visible to caller ordered by name.
func (s *Service) List(ctx context.Context, caller *model.Principal, search string) ([]*model.Patient, error) {
	filter := model.PatientFilter{Search: search}
	if !caller.CanSeeAllPatients() {
		filter.VisibleTo = &caller.ID
	}

	patients, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	for i, p := range patients {
		patients[i] = p.RedactFor(caller)
	}
	return patients, nil
}

// Get returns NotFound both for missing patients and for patients the caller
// may not see.
func (s *Service) Get(ctx context.Context, caller *model.Principal, id uuid.UUID) (*model.Patient, error) {
	p, err := s.visible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return p.RedactFor(caller), nil
}

// visible loads the stored row without redaction.
func (s *Service) visible(ctx context.Context, caller *model.Principal, id uuid.UUID) (*model.Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.FromStorage("patient", err)
	}
	if !p.VisibleTo(caller) {
		return nil, apperrors.NotFound("patient", nil)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, caller *model.Principal, req *model.PatientRequest) (*model.Patient, error) {
	normalize(req)
	if err := validatePatient(req, caller); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	p := &model.Patient{
		UserID: caller.ID,
		Status: model.PatientStatusActive,
		Sex:    model.DefaultPatientSex,
	}
	if err := apply(p, req, caller); err != nil {
		return nil, err
	}
	if p.ProfessionalID == nil && !caller.MustChoosePractitioner() {
		id := caller.ID
		p.ProfessionalID = &id
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperrors.Internal(err)
	}

	if !caller.Role.IsAssistant() {
		s.insertInitialMedications(ctx, p.ID, req.InitialMedications)
	}

	event.EmitLogged(ctx, s.events, s.logger, model.EventPatientCreated, map[string]interface{}{
		"patient_id": p.ID,
		"user_id":    caller.ID,
	})
	return p.RedactFor(caller), nil
}

// insertInitialMedications stores the inline medication rows of the creation
// form. Rows without a name are skipped; failures are logged.
func (s *Service) insertInitialMedications(ctx context.Context, patientID uuid.UUID, rows []model.MedicationRequest) {
	var meds []*model.Medication
	for i := range rows {
		row := rows[i]
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		if err := validateMedication(&row); err != nil {
			s.logger.Warn(err, "Skipping invalid initial medication", "patient_id", patientID.String())
			continue
		}
		med, _ := medicationFrom(&row)
		id := patientID
		med.PatientID = &id
		meds = append(meds, med)
	}
	if len(meds) == 0 {
		return
	}
	if err := s.medicationRepo.CreateBatch(ctx, meds); err != nil {
		s.logger.Warn(err, "Failed to store initial medications", "patient_id", patientID.String())
	}
}

// Update keeps the stored assignment when the request names no practitioner.
func (s *Service) Update(ctx context.Context, caller *model.Principal, id uuid.UUID, req *model.PatientRequest) (*model.Patient, error) {
	p, err := s.visible(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	normalize(req)
	if err := validatePatient(req, caller); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}
	if err := apply(p, req, caller); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, apperrors.FromStorage("patient", err)
	}

	event.EmitLogged(ctx, s.events, s.logger, model.EventPatientUpdated, map[string]interface{}{
		"patient_id": p.ID,
		"user_id":    caller.ID,
	})
	return p.RedactFor(caller), nil
}

// Detail loads the patient with its consultations and standing medications.
func (s *Service) Detail(ctx context.Context, caller *model.Principal, id uuid.UUID) (*model.PatientDetail, error) {
	p, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	consultations, err := s.consultationRepo.ListByPatient(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	meds, err := s.medicationRepo.ListByPatient(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if consultations == nil {
		consultations = []*model.Consultation{}
	}
	if meds == nil {
		meds = []*model.Medication{}
	}
	return &model.PatientDetail{Patient: p, Consultations: consultations, Medications: meds}, nil
}

func (s *Service) ListMedications(ctx context.Context, caller *model.Principal, patientID uuid.UUID) ([]*model.Medication, error) {
	if _, err := s.Get(ctx, caller, patientID); err != nil {
		return nil, err
	}
	meds, err := s.medicationRepo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if meds == nil {
		meds = []*model.Medication{}
	}
	return meds, nil
}

// UpdateMedication edits a standing medication of a visible patient.
func (s *Service) UpdateMedication(ctx context.Context, caller *model.Principal, patientID, medID uuid.UUID, req *model.MedicationRequest) (*model.Medication, error) {
	med, err := s.standingMedication(ctx, caller, patientID, medID)
	if err != nil {
		return nil, err
	}
	if err := validateMedication(req); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	med.Name = req.Name
	med.Dosage = strings.TrimSpace(req.Dosage)
	med.Frequency = strings.TrimSpace(req.Frequency)
	med.Stock = req.Stock
	if err := s.medicationRepo.Update(ctx, med); err != nil {
		return nil, apperrors.FromStorage("medication", err)
	}

	event.EmitLogged(ctx, s.events, s.logger, model.EventMedicationChanged, map[string]interface{}{
		"medication_id": med.ID,
		"patient_id":    patientID,
		"action":        "updated",
	})
	return med, nil
}

func (s *Service) DeleteMedication(ctx context.Context, caller *model.Principal, patientID, medID uuid.UUID) error {
	if _, err := s.standingMedication(ctx, caller, patientID, medID); err != nil {
		return err
	}
	if err := s.medicationRepo.Delete(ctx, medID); err != nil {
		return apperrors.FromStorage("medication", err)
	}

	event.EmitLogged(ctx, s.events, s.logger, model.EventMedicationChanged, map[string]interface{}{
		"medication_id": medID,
		"patient_id":    patientID,
		"action":        "deleted",
	})
	return nil
}

func (s *Service) standingMedication(ctx context.Context, caller *model.Principal, patientID, medID uuid.UUID) (*model.Medication, error) {
	if _, err := s.Get(ctx, caller, patientID); err != nil {
		return nil, err
	}
	med, err := s.medicationRepo.Get(ctx, medID)
	if err != nil {
		return nil, apperrors.FromStorage("medication", err)
	}
	if med.PatientID == nil || *med.PatientID != patientID {
		return nil, apperrors.NotFound("medication", nil)
	}
	return med, nil
}

// apply copies the request onto p. Assistants never write clinical fields,
// so their edits keep the stored diagnosis and notes.
func apply(p *model.Patient, req *model.PatientRequest, caller *model.Principal) error {
	dob, err := model.ParseDate(req.DateOfBirth)
	if err != nil {
		return apperrors.BadRequest("invalid date_of_birth", err)
	}

	if req.ProfessionalID != "" {
		id, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			return apperrors.BadRequest("invalid professional_id", err)
		}
		p.ProfessionalID = &id
	}

	p.FullName = req.FullName
	p.DateOfBirth = dob
	p.Phone = req.Phone
	p.Email = req.Email
	p.Address = strings.TrimSpace(req.Address)
	p.CPF = strings.TrimSpace(req.CPF)
	p.SUSNumber = strings.TrimSpace(req.SUSNumber)
	p.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if req.Sex != "" {
		p.Sex = req.Sex
	}
	if req.Status != "" {
		p.Status = req.Status
	}
	if !caller.Role.IsAssistant() {
		p.Diagnosis = req.Diagnosis
		p.Notes = req.Notes
	}
	return nil
}

func medicationFrom(req *model.MedicationRequest) (*model.Medication, error) {
	start, err := model.ParseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := model.ParseDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	return &model.Medication{
		Name:      req.Name,
		Dosage:    strings.TrimSpace(req.Dosage),
		Frequency: strings.TrimSpace(req.Frequency),
		Stock:     req.Stock,
		StartDate: start,
		EndDate:   end,
	}, nil
}
