package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
	"github.com/psicare/manager-api/internal/service/event"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/metrics"
)

// Signature fallbacks used when the caller's profile is incomplete.
const (
	DefaultPractitionerName = "Profissional"
	DefaultPractitionerCRM  = "000000"
	DefaultPractitionerRole = "Médico(a)"
)

// PatientLookup resolves a patient the caller is allowed to see.
type PatientLookup interface {
	Get(ctx context.Context, caller *model.Principal, id uuid.UUID) (*model.Patient, error)
}

// Printout is a generated document ready for the print surface.
type Printout struct {
	ID            string             `json:"id"`
	Type          model.DocumentType `json:"type"`
	Persisted     bool               `json:"persisted"`
	ValidationURL string             `json:"validation_url"`
	HTML          string             `json:"-"`
}

// Detail is one line of the kind-specific validation block.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Validation is the outcome of a public lookup. Every failure collapses into
// Valid == false.
type Validation struct {
	Valid    bool                     `json:"valid"`
	Document *model.GeneratedDocument `json:"document,omitempty"`
	Details  []Detail                 `json:"details,omitempty"`
}

type Service struct {
	patients PatientLookup
	profiles repository.ProfileRepository
	repo     repository.DocumentRepository
	renderer *Renderer
	events   event.Emitter
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cache    *cache.Cache
	now      func() time.Time
}

func NewService(
	patients PatientLookup,
	profiles repository.ProfileRepository,
	repo repository.DocumentRepository,
	renderer *Renderer,
	events event.Emitter,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	cacheTTL time.Duration,
) *Service {
	return &Service{
		patients: patients,
		profiles: profiles,
		repo:     repo,
		renderer: renderer,
		events:   events,
		logger:   logger,
		metrics:  metrics,
		cache:    cache.New(cacheTTL, 2*cacheTTL),
		now:      time.Now,
	}
}

// Generate records a validation entry for the document and renders it. A
// failed write does not block printing: the document gets a local id that
// never validates.
func (s *Service) Generate(ctx context.Context, caller *model.Principal, patientID uuid.UUID, req *model.DocumentRequest) (*Printout, error) {
	kind := Kind(req.Kind)
	if !kind.Valid() {
		return nil, apperrors.BadRequest("unknown document kind", nil)
	}

	now := s.now().In(s.renderer.location)
	content, err := payload(kind, req.Content, now)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	patient, err := s.patients.Get(ctx, caller, patientID)
	if err != nil {
		return nil, err
	}
	sig := s.signature(ctx, caller)

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	doc := &model.GeneratedDocument{
		Type:        kind.Type(),
		ContentData: raw,
		PatientName: patient.FullName,
		PatientCPF:  patient.CPF,
		DoctorName:  sig.Name,
		DoctorCRM:   sig.CRM,
	}

	persisted := true
	if err := s.repo.Create(ctx, doc); err != nil {
		s.logger.Warn(err, "Document validation record not stored, printing with local id",
			"type", string(doc.Type), "patient_id", patientID.String())
		doc.ID = model.LocalDocumentPrefix + strconv.FormatInt(now.UnixMilli(), 10)
		persisted = false
	}
	s.metrics.DocumentsGenerated.WithLabelValues(string(kind), strconv.FormatBool(persisted)).Inc()

	html, err := s.renderer.renderPrint(printInput{
		id:           doc.ID,
		kind:         kind,
		content:      content,
		patient:      patient,
		practitioner: sig,
		issued:       now,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if persisted {
		event.EmitLogged(ctx, s.events, s.logger, model.EventDocumentGenerated, map[string]interface{}{
			"document_id": doc.ID,
			"type":        doc.Type,
			"patient_id":  patientID,
			"user_id":     caller.ID,
		})
	}

	return &Printout{
		ID:            doc.ID,
		Type:          doc.Type,
		Persisted:     persisted,
		ValidationURL: s.renderer.ValidationURL(doc.ID),
		HTML:          html,
	}, nil
}

// signature snapshots the caller's profile for the printed signature block.
func (s *Service) signature(ctx context.Context, caller *model.Principal) signature {
	sig := signature{Name: DefaultPractitionerName, CRM: DefaultPractitionerCRM, Role: DefaultPractitionerRole}
	profile, err := s.profiles.Get(ctx, caller.ID)
	if err != nil {
		s.logger.Warn(err, "Profile not found for document signature", "user_id", caller.ID.String())
		return sig
	}
	if profile.Name != "" {
		sig.Name = profile.Name
	}
	if profile.CRM != "" {
		sig.CRM = profile.CRM
	}
	if profile.Role != "" {
		sig.Role = profile.Role
	}
	return sig
}

// Validate looks a document up by its public id. Malformed ids, local ids,
// misses and storage errors all produce the invalid state.
func (s *Service) Validate(ctx context.Context, rawID string) *Validation {
	if cached, ok := s.cache.Get(rawID); ok {
		s.metrics.DocumentLookups.WithLabelValues("cached").Inc()
		return cached.(*Validation)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		s.metrics.DocumentLookups.WithLabelValues("malformed").Inc()
		return &Validation{}
	}

	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error(err, "Document lookup failed", "document_id", rawID)
		}
		s.metrics.DocumentLookups.WithLabelValues("invalid").Inc()
		return &Validation{}
	}

	v := &Validation{Valid: true, Document: doc, Details: details(doc)}
	s.cache.SetDefault(rawID, v)
	s.metrics.DocumentLookups.WithLabelValues("valid").Inc()
	return v
}

// ValidationPage renders the public page for rawID.
func (s *Service) ValidationPage(ctx context.Context, rawID string) (*Validation, string, error) {
	v := s.Validate(ctx, rawID)
	html, err := s.renderer.RenderValidation(v)
	if err != nil {
		return v, "", apperrors.Internal(err)
	}
	return v, html, nil
}

// CommonExams lists the suggestions offered by the exam picker.
func (s *Service) CommonExams() []string {
	out := make([]string, len(CommonExams))
	copy(out, CommonExams)
	return out
}

func details(doc *model.GeneratedDocument) []Detail {
	switch doc.Type {
	case model.DocumentCertificate:
		var c model.CertificateContent
		if err := json.Unmarshal(doc.ContentData, &c); err != nil {
			return nil
		}
		return []Detail{
			{Label: "CID/Diagnóstico", Value: c.CID},
			{Label: "Dias de Afastamento", Value: fmt.Sprintf("%d dia(s)", c.Days)},
			{Label: "Tipo de Atendimento", Value: c.AttendanceType},
		}
	case model.DocumentAttendance:
		var c model.AttendanceContent
		if err := json.Unmarshal(doc.ContentData, &c); err != nil {
			return nil
		}
		return []Detail{
			{Label: "Data do Comparecimento", Value: c.Date.Display()},
			{Label: "Horário", Value: fmt.Sprintf("De %s às %s", c.StartTime, c.EndTime)},
		}
	}
	return nil
}
