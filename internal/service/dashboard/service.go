package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
)

// UpcomingLimit caps the patient list shown on the dashboard.
const UpcomingLimit = 20

// Overview modes.
const (
	ModeRoster   = "roster"
	ModePractice = "practice"
)

// Stats counts consultations dated today, this Sunday-to-Saturday week and
// this calendar month.
type Stats struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

type UpcomingPatient struct {
	*model.Patient
	Age              *int        `json:"age"`
	NextConsultation *model.Date `json:"next_consultation"`
}

type Overview struct {
	Mode           string            `json:"mode"`
	PractitionerID *uuid.UUID        `json:"practitioner_id,omitempty"`
	Roster         []*model.Profile  `json:"roster,omitempty"`
	Patients       []UpcomingPatient `json:"patients"`
	Stats          Stats             `json:"stats"`
}

type Service struct {
	patients      repository.PatientRepository
	consultations repository.ConsultationRepository
	profiles      repository.ProfileRepository
	logger        *logger.Logger
	location      *time.Location
	now           func() time.Time
}

func NewService(
	patients repository.PatientRepository,
	consultations repository.ConsultationRepository,
	profiles repository.ProfileRepository,
	logger *logger.Logger,
	location *time.Location,
) *Service {
	if location == nil {
		location = time.Local
	}
	return &Service{
		patients:      patients,
		consultations: consultations,
		profiles:      profiles,
		logger:        logger,
		location:      location,
		now:           time.Now,
	}
}

// Overview builds the dashboard. Administrators get the roster, plus the
// practice view of the practitioner they selected. Everyone else always sees
// their own practice; selected is ignored for them.
func (s *Service) Overview(ctx context.Context, caller *model.Principal, selected *uuid.UUID) (*Overview, error) {
	out := &Overview{Mode: ModePractice, Patients: []UpcomingPatient{}}

	filterID := caller.ID
	if caller.Role.IsAdministrator() {
		roster, err := s.profiles.List(ctx)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		out.Roster = roster
		if selected == nil {
			out.Mode = ModeRoster
			return out, nil
		}
		filterID = *selected
	}
	out.PractitionerID = &filterID

	today := model.DateOf(s.now().In(s.location))

	visible, err := s.patients.List(ctx, model.PatientFilter{VisibleTo: &filterID})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	ids := make([]uuid.UUID, len(visible))
	for i, p := range visible {
		ids[i] = p.ID
	}

	var consultations []*model.Consultation
	if len(ids) > 0 {
		consultations, err = s.consultations.ListByPatients(ctx, ids)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	out.Stats = computeStats(consultations, today)

	next := make(map[uuid.UUID]model.Date)
	for _, c := range consultations {
		if c.Date.IsZero() || c.Date.Before(today) {
			continue
		}
		if cur, ok := next[c.PatientID]; !ok || c.Date.Before(cur) {
			next[c.PatientID] = c.Date
		}
	}

	limit := len(visible)
	if limit > UpcomingLimit {
		limit = UpcomingLimit
	}
	for _, p := range visible[:limit] {
		row := UpcomingPatient{Patient: p.RedactFor(caller), Age: age(p.DateOfBirth, today)}
		if d, ok := next[p.ID]; ok {
			row.NextConsultation = d.Ptr()
		}
		out.Patients = append(out.Patients, row)
	}
	return out, nil
}

func computeStats(consultations []*model.Consultation, today model.Date) Stats {
	weekStart := today.AddDays(-int(today.Weekday()))
	weekEnd := weekStart.AddDays(6)

	var st Stats
	for _, c := range consultations {
		d := c.Date
		if d.IsZero() {
			continue
		}
		if d.Equal(today) {
			st.Daily++
		}
		if !d.Before(weekStart) && !d.After(weekEnd) {
			st.Weekly++
		}
		if d.Time().Year() == today.Time().Year() && d.Time().Month() == today.Time().Month() {
			st.Monthly++
		}
	}
	return st
}

func age(birth, today model.Date) *int {
	if birth.IsZero() {
		return nil
	}
	b, t := birth.Time(), today.Time()
	years := t.Year() - b.Year()
	if t.Month() < b.Month() || (t.Month() == b.Month() && t.Day() < b.Day()) {
		years--
	}
	return &years
}
