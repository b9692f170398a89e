package patient

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository/repotest"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
)

type fixture struct {
	svc         *Service
	patients    *repotest.Patients
	medications *repotest.Medications
	events      *repotest.Events
}

func newFixture(seed ...*model.Patient) *fixture {
	f := &fixture{
		patients:    repotest.NewPatients(seed...),
		medications: repotest.NewMedications(),
		events:      &repotest.Events{},
	}
	consultations := repotest.NewConsultations(f.patients, f.medications)
	f.svc = NewService(f.patients, f.medications, consultations, f.events, logger.Nop())
	return f
}

func principal(role model.Role) *model.Principal {
	return &model.Principal{ID: uuid.New(), Name: "Caller", Role: role}
}

func validRequest() *model.PatientRequest {
	return &model.PatientRequest{
		FullName:    "  Ana Souza ",
		DateOfBirth: "1990-05-01",
		Phone:       "11999990000",
		Diagnosis:   "F41.1",
	}
}

func TestList_VisibilityIsCreatorOrAssignee(t *testing.T) {
	a := principal(model.RolePractitioner)
	b := principal(model.RolePractitioner)
	c := principal(model.RolePractitioner)

	createdByA := &model.Patient{Base: model.Base{ID: uuid.New()}, UserID: a.ID, FullName: "Bruno"}
	assignedToA := &model.Patient{Base: model.Base{ID: uuid.New()}, UserID: b.ID, ProfessionalID: &a.ID, FullName: "Alice"}
	unrelated := &model.Patient{Base: model.Base{ID: uuid.New()}, UserID: b.ID, ProfessionalID: &c.ID, FullName: "Carla"}

	f := newFixture(createdByA, assignedToA, unrelated)
	ctx := context.Background()

	got, err := f.svc.List(ctx, a, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].FullName)
	assert.Equal(t, "Bruno", got[1].FullName)

	all, err := f.svc.List(ctx, principal(model.RoleAdministrator), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.Get(ctx, a, unrelated.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestCreate_PractitionerDefaultsToSelf(t *testing.T) {
	f := newFixture()
	caller := principal(model.RolePractitioner)

	req := validRequest()
	req.InitialMedications = []model.MedicationRequest{
		{Name: "Sertralina", Dosage: "50mg", Frequency: "1x ao dia", Stock: 2},
		{Name: "   "},
	}

	p, err := f.svc.Create(context.Background(), caller, req)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", p.FullName)
	assert.Equal(t, caller.ID, p.UserID)
	require.NotNil(t, p.ProfessionalID)
	assert.Equal(t, caller.ID, *p.ProfessionalID)
	assert.Equal(t, model.PatientStatusActive, p.Status)
	assert.Equal(t, model.DefaultPatientSex, p.Sex)

	meds, err := f.medications.ListByPatient(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "Sertralina", meds[0].Name)
	assert.Equal(t, []string{model.EventPatientCreated}, f.events.Emitted)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing phone", func(t *testing.T) {
		req := validRequest()
		req.Phone = " "
		_, err := newFixture().svc.Create(ctx, principal(model.RolePractitioner), req)
		assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	})

	t.Run("practitioner needs diagnosis", func(t *testing.T) {
		req := validRequest()
		req.Diagnosis = ""
		_, err := newFixture().svc.Create(ctx, principal(model.RolePractitioner), req)
		assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	})

	t.Run("administrator must choose practitioner", func(t *testing.T) {
		_, err := newFixture().svc.Create(ctx, principal(model.RoleAdministrator), validRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a responsible practitioner must be selected")
	})

	t.Run("malformed birth date", func(t *testing.T) {
		req := validRequest()
		req.DateOfBirth = "01/05/1990"
		_, err := newFixture().svc.Create(ctx, principal(model.RolePractitioner), req)
		assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	})
}

func TestCreate_AssistantSkipsClinicalFields(t *testing.T) {
	f := newFixture()
	caller := principal(model.RoleAssistant)
	practitioner := uuid.New()

	req := validRequest()
	req.Diagnosis = ""
	req.ProfessionalID = practitioner.String()
	req.InitialMedications = []model.MedicationRequest{{Name: "Sertralina"}}

	p, err := f.svc.Create(context.Background(), caller, req)
	require.NoError(t, err)
	assert.Equal(t, practitioner, *p.ProfessionalID)
	assert.Empty(t, p.Diagnosis)

	meds, err := f.medications.ListByPatient(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, meds)
}

func TestUpdate_AssistantKeepsDiagnosis(t *testing.T) {
	practitioner := uuid.New()
	assistant := principal(model.RoleAssistant)
	existing := &model.Patient{
		Base:           model.Base{ID: uuid.New()},
		UserID:         assistant.ID,
		ProfessionalID: &practitioner,
		FullName:       "Ana",
		Diagnosis:      "F41.1",
		Notes:          "sigiloso",
		Status:         model.PatientStatusActive,
	}
	f := newFixture(existing)

	req := validRequest()
	req.Diagnosis = ""
	req.ProfessionalID = practitioner.String()
	req.Phone = "11888887777"

	updated, err := f.svc.Update(context.Background(), assistant, existing.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "11888887777", updated.Phone)
	assert.Equal(t, "F41.1", updated.Diagnosis)
	assert.Empty(t, updated.Notes)

	stored, err := f.patients.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "sigiloso", stored.Notes)
}

func TestUpdate_KeepsAssignmentWhenOmitted(t *testing.T) {
	creator := principal(model.RolePractitioner)
	assignee := principal(model.RolePractitioner)
	existing := &model.Patient{
		Base:           model.Base{ID: uuid.New()},
		UserID:         creator.ID,
		ProfessionalID: &assignee.ID,
		FullName:       "Ana",
		Status:         model.PatientStatusActive,
	}
	f := newFixture(existing)
	ctx := context.Background()

	updated, err := f.svc.Update(ctx, creator, existing.ID, validRequest())
	require.NoError(t, err)
	require.NotNil(t, updated.ProfessionalID)
	assert.Equal(t, assignee.ID, *updated.ProfessionalID)

	got, err := f.svc.List(ctx, assignee, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRead_AssistantNeverSeesNotes(t *testing.T) {
	practitioner := principal(model.RolePractitioner)
	assistant := principal(model.RoleAssistant)
	existing := &model.Patient{
		Base:           model.Base{ID: uuid.New()},
		UserID:         assistant.ID,
		ProfessionalID: &practitioner.ID,
		FullName:       "Ana",
		Notes:          "sigilo clinico",
	}
	f := newFixture(existing)
	ctx := context.Background()

	p, err := f.svc.Get(ctx, assistant, existing.ID)
	require.NoError(t, err)
	assert.Empty(t, p.Notes)

	list, err := f.svc.List(ctx, assistant, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Notes)

	detail, err := f.svc.Detail(ctx, assistant, existing.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Patient.Notes)

	p, err = f.svc.Get(ctx, practitioner, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "sigilo clinico", p.Notes)
}

func TestDetail_IncludesDependentLists(t *testing.T) {
	caller := principal(model.RolePractitioner)
	p := &model.Patient{Base: model.Base{ID: uuid.New()}, UserID: caller.ID, FullName: "Ana"}
	f := newFixture(p)

	pid := p.ID
	require.NoError(t, f.medications.Create(context.Background(), &model.Medication{PatientID: &pid, Name: "Zolpidem"}))

	detail, err := f.svc.Detail(context.Background(), caller, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, detail.Patient.ID)
	assert.Empty(t, detail.Consultations)
	assert.Len(t, detail.Medications, 1)
}

func TestStandingMedication_ScopedToPatient(t *testing.T) {
	caller := principal(model.RolePractitioner)
	p := &model.Patient{Base: model.Base{ID: uuid.New()}, UserID: caller.ID, FullName: "Ana"}
	f := newFixture(p)
	ctx := context.Background()

	inventory := &model.Medication{Name: "Dipirona"}
	require.NoError(t, f.medications.Create(ctx, inventory))

	_, err := f.svc.UpdateMedication(ctx, caller, p.ID, inventory.ID, &model.MedicationRequest{Name: "X"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	pid := p.ID
	own := &model.Medication{PatientID: &pid, Name: "Sertralina", Stock: 1}
	require.NoError(t, f.medications.Create(ctx, own))

	updated, err := f.svc.UpdateMedication(ctx, caller, p.ID, own.ID, &model.MedicationRequest{Name: "Sertralina", Dosage: "100mg", Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, "100mg", updated.Dosage)
	assert.Equal(t, 3, updated.Stock)

	require.NoError(t, f.svc.DeleteMedication(ctx, caller, p.ID, own.ID))
	meds, err := f.svc.ListMedications(ctx, caller, p.ID)
	require.NoError(t, err)
	assert.Empty(t, meds)
}
