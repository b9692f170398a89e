package consultation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository/repotest"
	"github.com/psicare/manager-api/internal/service/patient"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/metrics"
)

type fixture struct {
	svc           *Service
	caller        *model.Principal
	patient       *model.Patient
	patients      *repotest.Patients
	medications   *repotest.Medications
	consultations *repotest.Consultations
	events        *repotest.Events
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	caller := &model.Principal{ID: uuid.New(), Name: "Dra. Paula", Role: model.RolePractitioner}
	p := &model.Patient{Base: model.Base{ID: uuid.New()}, UserID: caller.ID, FullName: "Ana", Diagnosis: "F41.1"}

	f := &fixture{
		caller:      caller,
		patient:     p,
		patients:    repotest.NewPatients(p),
		medications: repotest.NewMedications(),
		events:      &repotest.Events{},
	}
	f.consultations = repotest.NewConsultations(f.patients, f.medications)
	lookup := patient.NewService(f.patients, f.medications, f.consultations, f.events, logger.Nop())
	f.svc = NewService(lookup, f.consultations, f.medications, f.events, logger.Nop(), metrics.NewNop(), time.UTC)
	f.svc.now = func() time.Time { return time.Date(2024, time.January, 10, 14, 30, 0, 0, time.UTC) }
	return f
}

func TestSave_NewConsultationUpdatesDiagnosisAndSyncs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pid := f.patient.ID
	before := &model.Medication{PatientID: &pid, Name: "Zolpidem"}
	require.NoError(t, f.medications.Create(ctx, before))

	d, err := f.svc.NewDraft(ctx, f.caller, f.patient.ID)
	require.NoError(t, err)
	d.Diagnosis = "F32.1"
	d.Complaints = "tristeza"
	require.NoError(t, d.AddCustomMedicine(model.ConsultationMedicine{Name: "Sertralina", Dosage: "50mg", Frequency: "1x ao dia", Quantity: 2}))

	res, err := f.svc.Save(ctx, f.caller, d)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, d.State)

	assert.Equal(t, "F32.1", res.Patient.Diagnosis)
	stored, err := f.patients.Get(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "F32.1", stored.Diagnosis)

	assert.Equal(t, "Diagnóstico: F32.1\n\nQueixas: tristeza\n\n[Prescrição]\n• Sertralina (50mg, 1x ao dia)", res.Consultation.Summary)
	assert.Equal(t, "14:30", res.Consultation.Time)
	require.Len(t, res.Consultations, 1)

	// standing list is a superset of the previous list plus the prescription
	names := map[string]model.Medication{}
	for _, m := range res.Medications {
		names[m.Name] = *m
	}
	assert.Contains(t, names, "Zolpidem")
	require.Contains(t, names, "Sertralina")
	assert.Equal(t, "2024-01-10", names["Sertralina"].StartDate.String())
	assert.Equal(t, 2, names["Sertralina"].Stock)

	assert.Contains(t, f.events.Emitted, model.EventConsultationSaved)
}

func TestSave_NoSyncWhenFlagOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.NewDraft(ctx, f.caller, f.patient.ID)
	require.NoError(t, err)
	d.SyncToStanding = false
	require.NoError(t, d.AddCustomMedicine(model.ConsultationMedicine{Name: "Sertralina"}))

	res, err := f.svc.Save(ctx, f.caller, d)
	require.NoError(t, err)
	assert.Empty(t, res.Medications)
}

func TestSave_ReopenAndSaveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.NewDraft(ctx, f.caller, f.patient.ID)
	require.NoError(t, err)
	d.Complaints = "insônia"
	d.Evolution = "melhora"
	d.SyncToStanding = false
	require.NoError(t, d.AddCustomMedicine(model.ConsultationMedicine{Name: "Sertralina", Dosage: "50mg", Frequency: "1x"}))

	first, err := f.svc.Save(ctx, f.caller, d)
	require.NoError(t, err)
	original := first.Consultation.Summary
	withoutDiagnosis := strings.TrimPrefix(original, "Diagnóstico: F41.1\n\n")

	reopened, err := f.svc.ExistingDraft(ctx, f.caller, first.Consultation.ID)
	require.NoError(t, err)
	second, err := f.svc.Save(ctx, f.caller, reopened)
	require.NoError(t, err)
	assert.Equal(t, withoutDiagnosis, second.Consultation.Summary)
	assert.Equal(t, first.Consultation.ID, second.Consultation.ID)
	assert.Equal(t, "F41.1", second.Consultation.Diagnosis)

	again, err := f.svc.ExistingDraft(ctx, f.caller, first.Consultation.ID)
	require.NoError(t, err)
	third, err := f.svc.Save(ctx, f.caller, again)
	require.NoError(t, err)
	assert.Equal(t, second.Consultation.Summary, third.Consultation.Summary)
	assert.Len(t, third.Consultations, 1)
}

func TestSave_FailureLeavesDraftEditable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.NewDraft(ctx, f.caller, f.patient.ID)
	require.NoError(t, err)
	d.Diagnosis = "F99"
	require.NoError(t, d.AddCustomMedicine(model.ConsultationMedicine{Name: "Sertralina"}))

	f.medications.Fail = repotest.ErrInjected
	_, err = f.svc.Save(ctx, f.caller, d)
	require.Error(t, err)
	assert.Equal(t, StateDraftingNew, d.State)

	stored, err := f.patients.Get(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "F41.1", stored.Diagnosis)
}

func TestSave_InvisiblePatient(t *testing.T) {
	f := newFixture(t)
	stranger := &model.Principal{ID: uuid.New(), Role: model.RolePractitioner}

	d := OpenNew(f.patient, time.Now())
	_, err := f.svc.Save(context.Background(), stranger, d)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestApplyMedicineOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pid := f.patient.ID
	standing := &model.Medication{PatientID: &pid, Name: "Sertralina", Dosage: "50mg", Stock: 1}
	require.NoError(t, f.medications.Create(ctx, standing))

	d, err := f.svc.NewDraft(ctx, f.caller, f.patient.ID)
	require.NoError(t, err)

	d, err = f.svc.ApplyMedicineOp(ctx, f.caller, &MedicineOp{Draft: *d, Op: OpAddStanding, MedicationID: standing.ID.String()})
	require.NoError(t, err)
	require.Len(t, d.Medicines, 1)

	custom := &model.ConsultationMedicineRequest{Name: "sertralina"}
	_, err = f.svc.ApplyMedicineOp(ctx, f.caller, &MedicineOp{Draft: *d, Op: OpAddCustom, Medicine: custom})
	require.NoError(t, err)

	_, err = f.svc.ApplyMedicineOp(ctx, f.caller, &MedicineOp{Draft: *d, Op: OpAddStanding, MedicationID: standing.ID.String()})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Len(t, d.Medicines, 1)

	d, err = f.svc.ApplyMedicineOp(ctx, f.caller, &MedicineOp{Draft: *d, Op: OpRemove, Index: 0})
	require.NoError(t, err)
	assert.Empty(t, d.Medicines)

	_, err = f.svc.ApplyMedicineOp(ctx, f.caller, &MedicineOp{Draft: *d, Op: OpRemove, Index: 0})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestDraftFromRequest(t *testing.T) {
	pid := uuid.New()
	id := uuid.New()

	d, err := DraftFromRequest(pid, &model.ConsultationSaveRequest{
		ID:        id.String(),
		Date:      "2024-01-10",
		Medicines: []model.ConsultationMedicineRequest{{Name: "Sertralina", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, StateDraftingExisting, d.State)
	assert.Equal(t, "00:00", d.Time)
	assert.Len(t, d.Medicines, 1)

	_, err = DraftFromRequest(pid, &model.ConsultationSaveRequest{Date: ""})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = DraftFromRequest(pid, &model.ConsultationSaveRequest{Date: "2024-01-10", Time: "25:99"})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}
