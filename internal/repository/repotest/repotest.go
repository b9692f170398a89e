// Package repotest provides in-memory repositories for service tests.
package repotest

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
)

var (
	_ repository.IdentityRepository     = (*Identities)(nil)
	_ repository.ProfileRepository      = (*Profiles)(nil)
	_ repository.PatientRepository      = (*Patients)(nil)
	_ repository.MedicationRepository   = (*Medications)(nil)
	_ repository.ConsultationRepository = (*Consultations)(nil)
	_ repository.DocumentRepository     = (*Documents)(nil)
	_ repository.AssistantRepository    = (*Assistants)(nil)
)

// ErrInjected is returned by a store whose Fail field is set.
var ErrInjected = errors.New("injected failure")

type Identities struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Identity
	Fail error
}

func NewIdentities() *Identities {
	return &Identities{rows: make(map[uuid.UUID]*model.Identity)}
}

func (r *Identities) Create(_ context.Context, identity *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	identity.Email = strings.ToLower(identity.Email)
	identity.CreatedAt = time.Now()
	cp := *identity
	r.rows[identity.ID] = &cp
	return nil
}

func (r *Identities) GetByEmail(_ context.Context, email string) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Email == strings.ToLower(email) {
			cp := *row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *Identities) Get(_ context.Context, id uuid.UUID) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

type Profiles struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Profile
	Fail error
}

func NewProfiles(seed ...*model.Profile) *Profiles {
	r := &Profiles{rows: make(map[uuid.UUID]*model.Profile)}
	for _, p := range seed {
		cp := *p
		r.rows[p.ID] = &cp
	}
	return r
}

func (r *Profiles) Create(_ context.Context, p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *Profiles) Get(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return nil, r.Fail
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (r *Profiles) Update(_ context.Context, p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[p.ID]; !ok {
		return sql.ErrNoRows
	}
	p.UpdatedAt = time.Now()
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *Profiles) List(_ context.Context) ([]*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Profile, 0, len(r.rows))
	for _, row := range r.rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Len reports the number of stored profiles.
func (r *Profiles) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type Patients struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Patient
	Fail error
}

func NewPatients(seed ...*model.Patient) *Patients {
	r := &Patients{rows: make(map[uuid.UUID]*model.Patient)}
	for _, p := range seed {
		cp := *p
		r.rows[p.ID] = &cp
	}
	return r
}

func (r *Patients) Create(_ context.Context, p *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *Patients) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (r *Patients) Update(_ context.Context, p *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	if _, ok := r.rows[p.ID]; !ok {
		return sql.ErrNoRows
	}
	p.UpdatedAt = time.Now()
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *Patients) List(_ context.Context, filter model.PatientFilter) ([]*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return nil, r.Fail
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []*model.Patient
	for _, row := range r.rows {
		if filter.VisibleTo != nil {
			caller := *filter.VisibleTo
			assigned := row.ProfessionalID != nil && *row.ProfessionalID == caller
			if !assigned && row.UserID != caller {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(row.FullName), search) {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SetDiagnosis updates a stored patient directly, bypassing Fail.
func (r *Patients) SetDiagnosis(id uuid.UUID, diagnosis string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Diagnosis = diagnosis
	}
}

type Medications struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Medication
	Fail error
}

func NewMedications(seed ...*model.Medication) *Medications {
	r := &Medications{rows: make(map[uuid.UUID]*model.Medication)}
	for _, m := range seed {
		cp := *m
		r.rows[m.ID] = &cp
	}
	return r
}

func (r *Medications) Create(_ context.Context, med *model.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.insert(med)
	return nil
}

func (r *Medications) insert(med *model.Medication) {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	med.CreatedAt = time.Now()
	med.UpdatedAt = med.CreatedAt
	cp := *med
	r.rows[med.ID] = &cp
}

func (r *Medications) CreateBatch(_ context.Context, meds []*model.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	for _, med := range meds {
		r.insert(med)
	}
	return nil
}

func (r *Medications) Get(_ context.Context, id uuid.UUID) (*model.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (r *Medications) Update(_ context.Context, med *model.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[med.ID]; !ok {
		return sql.ErrNoRows
	}
	med.UpdatedAt = time.Now()
	cp := *med
	r.rows[med.ID] = &cp
	return nil
}

func (r *Medications) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *Medications) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Medication
	for _, row := range r.rows {
		if row.PatientID != nil && *row.PatientID == patientID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sortMedications(out)
	return out, nil
}

func (r *Medications) List(_ context.Context) ([]*model.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Medication, 0, len(r.rows))
	for _, row := range r.rows {
		cp := *row
		out = append(out, &cp)
	}
	sortMedications(out)
	return out, nil
}

func sortMedications(meds []*model.Medication) {
	sort.SliceStable(meds, func(i, j int) bool {
		if meds[i].Name != meds[j].Name {
			return meds[i].Name < meds[j].Name
		}
		return meds[i].CreatedAt.Before(meds[j].CreatedAt)
	})
}

// Consultations applies Save against the Patients and Medications stores it
// was built with, all or nothing.
type Consultations struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]*model.Consultation
	patients    *Patients
	medications *Medications
	Fail        error
}

func NewConsultations(patients *Patients, medications *Medications, seed ...*model.Consultation) *Consultations {
	r := &Consultations{
		rows:        make(map[uuid.UUID]*model.Consultation),
		patients:    patients,
		medications: medications,
	}
	for _, c := range seed {
		cp := *c
		r.rows[c.ID] = &cp
	}
	return r
}

func (r *Consultations) Get(_ context.Context, id uuid.UUID) (*model.Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (r *Consultations) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	return r.ListByPatients(context.Background(), []uuid.UUID{patientID})
}

func (r *Consultations) ListByPatients(_ context.Context, patientIDs []uuid.UUID) ([]*model.Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(patientIDs))
	for _, id := range patientIDs {
		wanted[id] = true
	}
	var out []*model.Consultation
	for _, row := range r.rows {
		if wanted[row.PatientID] {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Time > out[j].Time
	})
	return out, nil
}

func (r *Consultations) Save(ctx context.Context, save *model.ConsultationSave) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}

	c := save.Consultation
	if _, err := r.patients.Get(ctx, c.PatientID); err != nil {
		return err
	}
	if c.ID != uuid.Nil {
		existing, ok := r.rows[c.ID]
		if !ok || existing.PatientID != c.PatientID {
			return sql.ErrNoRows
		}
	}

	if len(save.Standing) > 0 && r.medications.Fail != nil {
		return r.medications.Fail
	}

	if save.PatientDiagnosis != nil {
		r.patients.SetDiagnosis(c.PatientID, *save.PatientDiagnosis)
	}
	now := time.Now()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	cp := *c
	cp.Medicines = append(model.ConsultationMedicines(nil), c.Medicines...)
	r.rows[c.ID] = &cp

	if len(save.Standing) > 0 {
		if err := r.medications.CreateBatch(ctx, save.Standing); err != nil {
			return err
		}
	}
	return nil
}

type Documents struct {
	mu    sync.Mutex
	rows  map[string]*model.GeneratedDocument
	Fail  error
	Reads int
}

func NewDocuments() *Documents {
	return &Documents{rows: make(map[string]*model.GeneratedDocument)}
}

func (r *Documents) Create(_ context.Context, doc *model.GeneratedDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	doc.ID = uuid.NewString()
	doc.CreatedAt = time.Now()
	cp := *doc
	r.rows[doc.ID] = &cp
	return nil
}

func (r *Documents) Get(_ context.Context, id uuid.UUID) (*model.GeneratedDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++
	row, ok := r.rows[id.String()]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

type Assistants struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Assistant
}

func NewAssistants(seed ...*model.Assistant) *Assistants {
	r := &Assistants{rows: make(map[uuid.UUID]*model.Assistant)}
	for _, a := range seed {
		cp := *a
		r.rows[a.ID] = &cp
	}
	return r
}

func (r *Assistants) Create(_ context.Context, a *model.Assistant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *Assistants) Get(_ context.Context, id uuid.UUID) (*model.Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (r *Assistants) Update(_ context.Context, a *model.Assistant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[a.ID]; !ok {
		return sql.ErrNoRows
	}
	a.UpdatedAt = time.Now()
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *Assistants) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *Assistants) List(_ context.Context) ([]*model.Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Assistant, 0, len(r.rows))
	for _, row := range r.rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

// Events records emitted domain events.
type Events struct {
	mu      sync.Mutex
	Emitted []string
}

func (e *Events) Emit(_ context.Context, eventType string, _ interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Emitted = append(e.Emitted, eventType)
	return nil
}
