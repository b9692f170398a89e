package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
)

// View is one of the named screens of the application shell.
type View string

const (
	ViewDashboard   View = "dashboard"
	ViewPatients    View = "patients"
	ViewAssistants  View = "assistants"
	ViewMedications View = "medications"
	ViewProfile     View = "profile"
)

func (v View) Valid() bool {
	switch v {
	case ViewDashboard, ViewPatients, ViewAssistants, ViewMedications, ViewProfile:
		return true
	}
	return false
}

// AppState is the navigation state handed to the client: the signed-in user,
// the current view and its optional parameters.
type AppState struct {
	User                   *model.Principal `json:"user"`
	View                   View             `json:"view"`
	SelectedPatientID      *uuid.UUID       `json:"selected_patient_id,omitempty"`
	SelectedPractitionerID *uuid.UUID       `json:"selected_practitioner_id,omitempty"`
}

func NewAppState(user *model.Principal) *AppState {
	return &AppState{User: user, View: ViewDashboard}
}

// Navigate switches views. Leaving the patient registry drops the selected
// patient; entering the dashboard drops the practitioner filter.
func (s *AppState) Navigate(view View) error {
	if !view.Valid() {
		return fmt.Errorf("unknown view %q", view)
	}
	if s.View == ViewPatients && view != ViewPatients {
		s.SelectedPatientID = nil
	}
	if view == ViewDashboard {
		s.SelectedPractitionerID = nil
	}
	s.View = view
	return nil
}

func (s *AppState) SelectPatient(id uuid.UUID) {
	s.View = ViewPatients
	s.SelectedPatientID = &id
}

// ClearSelection leaves the patient detail view.
func (s *AppState) ClearSelection() {
	s.SelectedPatientID = nil
}

// SelectPractitioner scopes the dashboard of an administrator.
func (s *AppState) SelectPractitioner(id uuid.UUID) {
	s.SelectedPractitionerID = &id
}

func (s *AppState) SignOut() {
	s.User = nil
	s.SelectedPractitionerID = nil
	s.SelectedPatientID = nil
	s.View = ViewDashboard
}
