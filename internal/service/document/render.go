package document

import (
	"bytes"
	"embed"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/psicare/manager-api/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// printDelay gives the QR image time to load before the print dialog opens.
const printDelay = 1000 * time.Millisecond

// Letterhead is the clinic identity printed on every document.
type Letterhead struct {
	Name    string   `mapstructure:"name"`
	Suffix  string   `mapstructure:"suffix"`
	Address []string `mapstructure:"address"`
}

type patientBlock struct {
	Name           string
	CPF            string
	Phone          string
	AttendanceType string
}

type signature struct {
	Name string
	Role string
	CRM  string
}

type certificateBlock struct {
	Days    int
	CID     string
	EndDate string
}

type printView struct {
	Letterhead       Letterhead
	Title            string
	Patient          patientBlock
	Practitioner     signature
	ShortID          string
	ValidationURL    string
	QRURL            string
	Host             string
	IssueDate        string
	IssueTime        string
	PrintDelayMillis int64

	Prescription *model.PrescriptionContent
	Attendance   *model.AttendanceContent
	Certificate  *certificateBlock
	Exams        []string
}

type validationView struct {
	Letterhead  Letterhead
	Valid       bool
	Document    *model.GeneratedDocument
	Details     []Detail
	CreatedDate string
	CreatedTime string
}

// Renderer produces the printable and validation pages.
type Renderer struct {
	tmpl       *template.Template
	letterhead Letterhead
	origin     string
	qrService  string
	location   *time.Location
}

func NewRenderer(letterhead Letterhead, publicURL, qrService string, location *time.Location) (*Renderer, error) {
	tmpl, err := template.New("document").Funcs(template.FuncMap{
		"upper": strings.ToUpper,
		"inc":   func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "parse document templates")
	}
	if location == nil {
		location = time.Local
	}
	return &Renderer{
		tmpl:       tmpl,
		letterhead: letterhead,
		origin:     strings.TrimRight(publicURL, "/"),
		qrService:  qrService,
		location:   location,
	}, nil
}

// ValidationURL is the link encoded in the printed QR code.
func (r *Renderer) ValidationURL(id string) string {
	return r.origin + "?doc_id=" + url.QueryEscape(id)
}

func (r *Renderer) qrURL(target string) string {
	return r.qrService + "?text=" + url.QueryEscape(target) + "&size=200&margin=1"
}

func (r *Renderer) host() string {
	u, err := url.Parse(r.origin)
	if err != nil || u.Host == "" {
		return r.origin
	}
	return u.Host
}

type printInput struct {
	id           string
	kind         Kind
	content      interface{}
	patient      *model.Patient
	practitioner signature
	issued       time.Time
}

func (r *Renderer) renderPrint(in printInput) (string, error) {
	issued := in.issued.In(r.location)
	validationURL := r.ValidationURL(in.id)

	view := printView{
		Letterhead: r.letterhead,
		Title:      in.kind.Title(),
		Patient: patientBlock{
			Name:           in.patient.FullName,
			CPF:            in.patient.CPF,
			Phone:          in.patient.Phone,
			AttendanceType: DefaultAttendanceType,
		},
		Practitioner:     in.practitioner,
		ShortID:          shortID(in.id),
		ValidationURL:    validationURL,
		QRURL:            r.qrURL(validationURL),
		Host:             r.host(),
		IssueDate:        issued.Format(model.DisplayDateLayout),
		IssueTime:        issued.Format(model.ClockLayout),
		PrintDelayMillis: printDelay.Milliseconds(),
	}

	switch c := in.content.(type) {
	case *model.PrescriptionContent:
		view.Prescription = c
	case *model.AttendanceContent:
		view.Attendance = c
	case *model.CertificateContent:
		view.Patient.AttendanceType = c.AttendanceType
		view.Certificate = &certificateBlock{
			Days:    c.Days,
			CID:     c.CID,
			EndDate: certificateEnd(model.DateOf(issued), c.Days).Display(),
		}
	case *model.ExamRequestContent:
		view.Exams = c.Exams
	}

	return r.execute("print", view)
}

func (r *Renderer) RenderValidation(v *Validation) (string, error) {
	view := validationView{Letterhead: r.letterhead, Valid: v.Valid}
	if v.Valid {
		created := v.Document.CreatedAt.In(r.location)
		view.Document = v.Document
		view.Details = v.Details
		view.CreatedDate = created.Format(model.DisplayDateLayout)
		view.CreatedTime = created.Format(model.ClockLayout)
	}
	return r.execute("validation", view)
}

func (r *Renderer) execute(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "render %s", name)
	}
	return buf.String(), nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
