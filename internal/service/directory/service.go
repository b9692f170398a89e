// Package directory serves the flat listing screens: assistants, the
// medication inventory and the professional roster.
package directory

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
	"github.com/psicare/manager-api/internal/service/event"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
)

type Service struct {
	assistants  repository.AssistantRepository
	medications repository.MedicationRepository
	profiles    repository.ProfileRepository
	events      event.Emitter
	logger      *logger.Logger
}

func NewService(
	assistants repository.AssistantRepository,
	medications repository.MedicationRepository,
	profiles repository.ProfileRepository,
	events event.Emitter,
	logger *logger.Logger,
) *Service {
	return &Service{
		assistants:  assistants,
		medications: medications,
		profiles:    profiles,
		events:      events,
		logger:      logger,
	}
}

// matches reports a case-insensitive substring hit on any field.
func matches(search string, fields ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

// Assistants

func (s *Service) ListAssistants(ctx context.Context, search string) ([]*model.Assistant, error) {
	all, err := s.assistants.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	out := make([]*model.Assistant, 0, len(all))
	for _, a := range all {
		if matches(search, a.FullName, a.Specialty) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) CreateAssistant(ctx context.Context, req *model.AssistantRequest) (*model.Assistant, error) {
	a := &model.Assistant{}
	if err := applyAssistant(a, req); err != nil {
		return nil, err
	}
	if err := s.assistants.Create(ctx, a); err != nil {
		return nil, apperrors.Internal(err)
	}
	s.assistantChanged(ctx, a.ID, "created")
	return a, nil
}

func (s *Service) UpdateAssistant(ctx context.Context, id uuid.UUID, req *model.AssistantRequest) (*model.Assistant, error) {
	a, err := s.assistants.Get(ctx, id)
	if err != nil {
		return nil, apperrors.FromStorage("assistant", err)
	}
	if err := applyAssistant(a, req); err != nil {
		return nil, err
	}
	if err := s.assistants.Update(ctx, a); err != nil {
		return nil, apperrors.FromStorage("assistant", err)
	}
	s.assistantChanged(ctx, a.ID, "updated")
	return a, nil
}

func (s *Service) DeleteAssistant(ctx context.Context, id uuid.UUID) error {
	if err := s.assistants.Delete(ctx, id); err != nil {
		return apperrors.FromStorage("assistant", err)
	}
	s.assistantChanged(ctx, id, "deleted")
	return nil
}

func (s *Service) assistantChanged(ctx context.Context, id uuid.UUID, action string) {
	event.EmitLogged(ctx, s.events, s.logger, model.EventAssistantChanged, map[string]interface{}{
		"assistant_id": id,
		"action":       action,
	})
}

func applyAssistant(a *model.Assistant, req *model.AssistantRequest) error {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	err := validation.ValidateStruct(req,
		validation.Field(&req.FullName, validation.Required),
		validation.Field(&req.Email, is.EmailFormat),
		validation.Field(&req.PhotoURL, is.URL),
	)
	if err != nil {
		return apperrors.BadRequest(err.Error(), err)
	}

	a.FullName = req.FullName
	a.Specialty = strings.TrimSpace(req.Specialty)
	a.Email = req.Email
	a.Phone = strings.TrimSpace(req.Phone)
	a.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if a.PhotoURL == "" {
		a.PhotoURL = model.AvatarURL(a.FullName)
	}
	return nil
}

// Medication inventory

// ListMedications returns every medication row, inventory and standing.
func (s *Service) ListMedications(ctx context.Context, search string) ([]*model.Medication, error) {
	all, err := s.medications.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	out := make([]*model.Medication, 0, len(all))
	for _, m := range all {
		if matches(search, m.Name) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Service) CreateMedication(ctx context.Context, req *model.MedicationRequest) (*model.Medication, error) {
	med := &model.Medication{}
	if err := applyMedication(med, req); err != nil {
		return nil, err
	}
	if err := s.medications.Create(ctx, med); err != nil {
		return nil, apperrors.Internal(err)
	}
	s.medicationChanged(ctx, med.ID, "created")
	return med, nil
}

// UpdateMedication edits an inventory item. Standing medications of a patient
// are edited through the patient registry.
func (s *Service) UpdateMedication(ctx context.Context, id uuid.UUID, req *model.MedicationRequest) (*model.Medication, error) {
	med, err := s.inventoryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyMedication(med, req); err != nil {
		return nil, err
	}
	if err := s.medications.Update(ctx, med); err != nil {
		return nil, apperrors.FromStorage("medication", err)
	}
	s.medicationChanged(ctx, med.ID, "updated")
	return med, nil
}

func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	if _, err := s.inventoryItem(ctx, id); err != nil {
		return err
	}
	if err := s.medications.Delete(ctx, id); err != nil {
		return apperrors.FromStorage("medication", err)
	}
	s.medicationChanged(ctx, id, "deleted")
	return nil
}

func (s *Service) inventoryItem(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	med, err := s.medications.Get(ctx, id)
	if err != nil {
		return nil, apperrors.FromStorage("medication", err)
	}
	if med.PatientID != nil {
		return nil, apperrors.NotFound("medication", nil)
	}
	return med, nil
}

func (s *Service) medicationChanged(ctx context.Context, id uuid.UUID, action string) {
	event.EmitLogged(ctx, s.events, s.logger, model.EventMedicationChanged, map[string]interface{}{
		"medication_id": id,
		"action":        action,
	})
}

func applyMedication(med *model.Medication, req *model.MedicationRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.Stock, validation.Min(0)),
	)
	if err != nil {
		return apperrors.BadRequest(err.Error(), err)
	}
	start, err := model.ParseDate(req.StartDate)
	if err != nil {
		return apperrors.BadRequest("invalid start_date", err)
	}
	end, err := model.ParseDate(req.EndDate)
	if err != nil {
		return apperrors.BadRequest("invalid end_date", err)
	}

	med.Name = req.Name
	med.Dosage = strings.TrimSpace(req.Dosage)
	med.Frequency = strings.TrimSpace(req.Frequency)
	med.Stock = req.Stock
	med.StartDate = start
	med.EndDate = end
	return nil
}

// Professional roster

func (s *Service) ListProfiles(ctx context.Context, search string) ([]*model.Profile, error) {
	all, err := s.profiles.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	out := make([]*model.Profile, 0, len(all))
	for _, p := range all {
		if matches(search, p.Name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, apperrors.FromStorage("profile", err)
	}
	return p, nil
}

// UpdateProfile edits a roster entry. Administrators may edit anyone and set
// the role label; everyone else may only edit their own profile and keeps
// their role.
func (s *Service) UpdateProfile(ctx context.Context, caller *model.Principal, id uuid.UUID, req *model.ProfileUpdateRequest) (*model.Profile, error) {
	admin := caller.Role.IsAdministrator()
	if !admin && caller.ID != id {
		return nil, apperrors.Forbidden("only administrators can edit other profiles")
	}

	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, apperrors.FromStorage("profile", err)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	err = validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.Email, is.EmailFormat),
	)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	p.Name = req.Name
	p.Email = req.Email
	p.Phone = strings.TrimSpace(req.Phone)
	p.CRM = strings.TrimSpace(req.CRM)
	p.CPF = strings.TrimSpace(req.CPF)
	p.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if p.PhotoURL == "" {
		p.PhotoURL = model.AvatarURL(p.Name)
	}
	if admin && strings.TrimSpace(req.Role) != "" {
		p.Role = strings.TrimSpace(req.Role)
	}

	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, apperrors.FromStorage("profile", err)
	}
	event.EmitLogged(ctx, s.events, s.logger, model.EventProfileUpdated, map[string]interface{}{
		"profile_id": p.ID,
		"user_id":    caller.ID,
	})
	return p, nil
}
