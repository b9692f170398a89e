package document

import (
	"context"
	"encoding/json"
	"net/url"
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

const (
	testOrigin = "https://psicare.example"
	testQR     = "https://quickchart.io/qr"
)

type fixture struct {
	svc       *Service
	caller    *model.Principal
	patient   *model.Patient
	patients  *repotest.Patients
	documents *repotest.Documents
	profiles  *repotest.Profiles
	events    *repotest.Events
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	caller := &model.Principal{ID: uuid.New(), Name: "Paula", Role: model.RolePractitioner}
	p := &model.Patient{
		Base:     model.Base{ID: uuid.New()},
		UserID:   caller.ID,
		FullName: "Ana Souza",
		CPF:      "123.456.789-00",
		Phone:    "11999990000",
	}

	f := &fixture{
		caller:    caller,
		patient:   p,
		patients:  repotest.NewPatients(p),
		documents: repotest.NewDocuments(),
		profiles: repotest.NewProfiles(&model.Profile{
			Base: model.Base{ID: caller.ID},
			Name: "Dra. Paula Lima",
			Role: "Psiquiatra",
			CRM:  "12345",
		}),
		events: &repotest.Events{},
	}

	meds := repotest.NewMedications()
	lookup := patient.NewService(f.patients, meds, repotest.NewConsultations(f.patients, meds), f.events, logger.Nop())
	renderer, err := NewRenderer(Letterhead{Name: "Psicare", Suffix: "Manager", Address: []string{"Av. Paulista, 867"}}, testOrigin+"/", testQR, time.UTC)
	require.NoError(t, err)

	f.svc = NewService(lookup, f.profiles, f.documents, renderer, f.events, logger.Nop(), metrics.NewNop(), time.Hour)
	f.svc.now = func() time.Time { return printedAt }
	return f
}

func request(kind Kind, content string) *model.DocumentRequest {
	return &model.DocumentRequest{Kind: string(kind), Content: json.RawMessage(content)}
}

func TestGenerate_CertificateRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Generate(ctx, f.caller, f.patient.ID, request(KindCertificate, `{"days":3,"cid":"F41.1"}`))
	require.NoError(t, err)
	assert.True(t, out.Persisted)
	assert.Equal(t, testOrigin+"?doc_id="+out.ID, out.ValidationURL)

	// later renames do not reach the stored snapshot
	renamed := *f.patient
	renamed.FullName = "Ana Souza Lima"
	require.NoError(t, f.patients.Update(ctx, &renamed))

	v := f.svc.Validate(ctx, out.ID)
	require.True(t, v.Valid)
	assert.Equal(t, model.DocumentCertificate, v.Document.Type)
	assert.Equal(t, "Ana Souza", v.Document.PatientName)
	assert.Equal(t, "Dra. Paula Lima", v.Document.DoctorName)
	assert.Equal(t, "12345", v.Document.DoctorCRM)
	assert.Equal(t, []Detail{
		{Label: "CID/Diagnóstico", Value: "F41.1"},
		{Label: "Dias de Afastamento", Value: "3 dia(s)"},
		{Label: "Tipo de Atendimento", Value: "Eletiva"},
	}, v.Details)
	assert.Contains(t, f.events.Emitted, model.EventDocumentGenerated)
}

func TestGenerate_PrintableMarkup(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Generate(context.Background(), f.caller, f.patient.ID, request(KindCertificate, `{"days":3,"cid":"F41.1"}`))
	require.NoError(t, err)

	html := out.HTML
	assert.Contains(t, html, "<h2 class=\"doc-title\">Atestado</h2>")
	assert.Contains(t, html, "ANA SOUZA")
	assert.Contains(t, html, "123.456.789-00")
	assert.Contains(t, html, "Atestado válido de 10/01/2024 até 12/01/2024.")
	assert.Contains(t, html, "DRA. PAULA LIMA")
	assert.Contains(t, html, "PSIQUIATRA")
	assert.Contains(t, html, "CRM 12345")
	assert.Contains(t, html, "não é uma assinatura digital criptográfica")
	assert.Contains(t, html, out.ID[:8]+"...")
	assert.Contains(t, html, "Para conferir a autenticidade acesse "+out.ValidationURL)
	assert.Contains(t, html, testQR+"?text="+url.QueryEscape(out.ValidationURL))
	assert.Contains(t, html, "window.print()")
	assert.Contains(t, html, "1000")
}

func TestGenerate_ExamsAndPrescriptionBodies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exams, err := f.svc.Generate(ctx, f.caller, f.patient.ID, request(KindExams, `{"exams":["TSH","TSH","Ureia"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(exams.HTML, "• TSH"))
	assert.Contains(t, exams.HTML, "• Ureia")

	rx, err := f.svc.Generate(ctx, f.caller, f.patient.ID, request(KindPrescription,
		`{"medicines":[{"name":"Sertralina","dosage":"50mg","frequency":"1x ao dia","quantity":2}]}`))
	require.NoError(t, err)
	assert.Contains(t, rx.HTML, "Receituário")
	assert.Contains(t, rx.HTML, "1. Sertralina 50mg")
	assert.Contains(t, rx.HTML, "Uso: 1x ao dia")
	assert.Contains(t, rx.HTML, "(Quantidade: 2 caixas)")

	v := f.svc.Validate(ctx, rx.ID)
	require.True(t, v.Valid)
	assert.Empty(t, v.Details)
}

func TestGenerate_PersistenceFailureUsesLocalID(t *testing.T) {
	f := newFixture(t)
	f.documents.Fail = repotest.ErrInjected

	out, err := f.svc.Generate(context.Background(), f.caller, f.patient.ID, request(KindAttendance, `{}`))
	require.NoError(t, err)
	assert.False(t, out.Persisted)
	assert.Equal(t, "local-1704897000000", out.ID)
	assert.Contains(t, out.HTML, "Declaração de Comparecimento")
	assert.Contains(t, out.HTML, "<strong>14:30</strong> às <strong>15:30</strong>")
	assert.NotContains(t, f.events.Emitted, model.EventDocumentGenerated)

	assert.False(t, f.svc.Validate(context.Background(), out.ID).Valid)
}

func TestGenerate_SignatureDefaults(t *testing.T) {
	f := newFixture(t)
	stranger := &model.Principal{ID: uuid.New(), Role: model.RoleAdministrator}

	out, err := f.svc.Generate(context.Background(), stranger, f.patient.ID, request(KindCertificate, `{"days":1}`))
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "PROFISSIONAL")
	assert.Contains(t, out.HTML, "MÉDICO(A)")
	assert.Contains(t, out.HTML, "CRM 000000")
}

func TestGenerate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, f.caller, f.patient.ID, request("invoice", `{}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = f.svc.Generate(ctx, f.caller, f.patient.ID, request(KindCertificate, `{"days":0}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = f.svc.Generate(ctx, f.caller, uuid.New(), request(KindExams, `{"exams":["TSH"]}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestValidate_InvalidStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"", "not-a-uuid", "local-123", uuid.NewString()} {
		v := f.svc.Validate(ctx, id)
		assert.False(t, v.Valid, id)
		assert.Nil(t, v.Document)
	}

	v, html, err := f.svc.ValidationPage(ctx, "garbage")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Contains(t, html, "Documento Inválido")
}

func TestValidate_CachesHits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Generate(ctx, f.caller, f.patient.ID, request(KindAttendance, `{"date":"2024-01-09","startTime":"08:00","endTime":"09:15"}`))
	require.NoError(t, err)

	v, html, err := f.svc.ValidationPage(ctx, out.ID)
	require.NoError(t, err)
	require.True(t, v.Valid)
	assert.Contains(t, html, "Documento Autêntico")
	assert.Contains(t, html, "Declaração de Comparecimento")
	assert.Contains(t, html, "09/01/2024")
	assert.Contains(t, html, "De 08:00 às 09:15")
	assert.Contains(t, html, "Nenhuma assinatura criptográfica é verificada.")

	reads := f.documents.Reads
	again := f.svc.Validate(ctx, out.ID)
	assert.True(t, again.Valid)
	assert.Equal(t, reads, f.documents.Reads)
}
