package document

import (
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/psicare/manager-api/internal/model"
)

// Kind selects one of the printable documents.
type Kind string

const (
	KindPrescription Kind = "prescription"
	KindAttendance   Kind = "attendance"
	KindCertificate  Kind = "certificate"
	KindExams        Kind = "exams"
)

// DefaultAttendanceType is printed when a certificate names no attendance type.
const DefaultAttendanceType = "Eletiva"

// CommonExams feeds the exam picker.
var CommonExams = []string{
	"Hemograma Completo", "Glicemia de Jejum", "Colesterol Total e Frações",
	"Triglicérides", "Ureia", "Creatinina", "TGO", "TGP",
	"TSH", "T4 Livre", "Vitamina B12", "Vitamina D", "EAS (Urina Tipo 1)",
	"Eletrocardiograma", "Raio-X de Tórax",
}

func (k Kind) Valid() bool {
	switch k {
	case KindPrescription, KindAttendance, KindCertificate, KindExams:
		return true
	}
	return false
}

// Type is the tag stored with the validation record.
func (k Kind) Type() model.DocumentType {
	switch k {
	case KindPrescription:
		return model.DocumentPrescription
	case KindAttendance:
		return model.DocumentAttendance
	case KindCertificate:
		return model.DocumentCertificate
	default:
		return model.DocumentExamRequest
	}
}

// Title is the heading printed on the document.
func (k Kind) Title() string {
	switch k {
	case KindPrescription:
		return "Receituário"
	case KindAttendance:
		return "Declaração de Comparecimento"
	case KindCertificate:
		return "Atestado"
	default:
		return "Solicitação de Exames"
	}
}

// payload decodes raw and applies the per-kind defaults and rules. now is the
// printing moment in the clinic's zone.
func payload(kind Kind, raw json.RawMessage, now time.Time) (interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	switch kind {
	case KindPrescription:
		var p model.PrescriptionContent
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.Date.IsZero() {
			p.Date = model.DateOf(now)
		}
		meds := make([]model.ConsultationMedicine, 0, len(p.Medicines))
		for _, m := range p.Medicines {
			m.Name = strings.TrimSpace(m.Name)
			if m.Name != "" {
				meds = append(meds, m)
			}
		}
		p.Medicines = meds
		return &p, nil

	case KindAttendance:
		var p model.AttendanceContent
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.Date.IsZero() {
			p.Date = model.DateOf(now)
		}
		if p.StartTime == "" {
			p.StartTime = now.Format(model.ClockLayout)
		}
		if p.EndTime == "" {
			p.EndTime = now.Add(time.Hour).Format(model.ClockLayout)
		}
		err := validation.ValidateStruct(&p,
			validation.Field(&p.StartTime, validation.By(clock)),
			validation.Field(&p.EndTime, validation.By(clock)),
		)
		if err != nil {
			return nil, err
		}
		return &p, nil

	case KindCertificate:
		var p model.CertificateContent
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		p.CID = strings.TrimSpace(p.CID)
		p.AttendanceType = strings.TrimSpace(p.AttendanceType)
		if p.AttendanceType == "" {
			p.AttendanceType = DefaultAttendanceType
		}
		err := validation.ValidateStruct(&p,
			validation.Field(&p.Days, validation.Required, validation.Min(1)),
		)
		if err != nil {
			return nil, err
		}
		return &p, nil

	default:
		var p model.ExamRequestContent
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		p.Exams = dedupe(p.Exams)
		err := validation.ValidateStruct(&p,
			validation.Field(&p.Exams, validation.Required),
		)
		if err != nil {
			return nil, err
		}
		return &p, nil
	}
}

func clock(value interface{}) error {
	s, _ := value.(string)
	if _, err := time.Parse(model.ClockLayout, s); err != nil {
		return validation.NewError("validation_clock", "must be a time in HH:MM format")
	}
	return nil
}

// dedupe trims names and drops blanks and repeats, keeping the first order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// certificateEnd is the last day covered by a certificate issued on issued.
func certificateEnd(issued model.Date, days int) model.Date {
	return issued.AddDays(days - 1)
}
