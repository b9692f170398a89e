package model

import (
	"encoding/json"
	"strings"
	"time"
)

// DocumentType is the stored type tag of a generated document.
type DocumentType string

const (
	DocumentPrescription DocumentType = "Receita Médica"
	DocumentAttendance   DocumentType = "Declaração de Comparecimento"
	DocumentCertificate  DocumentType = "Atestado Médico"
	DocumentExamRequest  DocumentType = "Solicitação de Exames"
)

// LocalDocumentPrefix marks ids synthesized when the validation record could
// not be persisted. Such ids never validate.
const LocalDocumentPrefix = "local-"

// GeneratedDocument backs the public validation page. Rows are immutable and
// keep the patient and practitioner identity as it was when printed.
type GeneratedDocument struct {
	ID          string          `json:"id" db:"id"`
	Type        DocumentType    `json:"type" db:"type"`
	ContentData json.RawMessage `json:"content_data" db:"content_data"`
	PatientName string          `json:"patient_name" db:"patient_name"`
	PatientCPF  string          `json:"patient_cpf" db:"patient_cpf"`
	DoctorName  string          `json:"doctor_name" db:"doctor_name"`
	DoctorCRM   string          `json:"doctor_crm" db:"doctor_crm"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

func (d *GeneratedDocument) IsLocal() bool {
	return strings.HasPrefix(d.ID, LocalDocumentPrefix)
}

type PrescriptionContent struct {
	Medicines []ConsultationMedicine `json:"medicines"`
	Date      Date                   `json:"date"`
}

type AttendanceContent struct {
	Date      Date   `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type CertificateContent struct {
	Days           int    `json:"days"`
	CID            string `json:"cid"`
	AttendanceType string `json:"attendanceType"`
}

type ExamRequestContent struct {
	Exams []string `json:"exams"`
}

type DocumentRequest struct {
	Kind    string          `json:"kind" binding:"required,oneof=prescription attendance certificate exams"`
	Content json.RawMessage `json:"content"`
}
