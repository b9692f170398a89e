package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psicare/manager-api/internal/model"
)

func TestDocumentRepository_CreateAssignsPublicID(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewDocumentRepository(base)

	mock.ExpectExec("INSERT INTO generated_documents").
		WithArgs(sqlmock.AnyArg(), "Atestado Médico", sqlmock.AnyArg(), "Ana Souza", "123", "Dr. Paulo", "4567", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc := &model.GeneratedDocument{
		Type:        model.DocumentCertificate,
		ContentData: json.RawMessage(`{"days":5}`),
		PatientName: "Ana Souza",
		PatientCPF:  "123",
		DoctorName:  "Dr. Paulo",
		DoctorCRM:   "4567",
	}
	require.NoError(t, repo.Create(context.Background(), doc))

	_, err := uuid.Parse(doc.ID)
	assert.NoError(t, err)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_GetMiss(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewDocumentRepository(base)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM generated_documents")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_Get(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewDocumentRepository(base)

	id := uuid.New()
	created := time.Date(2024, 1, 10, 15, 4, 0, 0, time.UTC)
	mock.ExpectQuery("FROM generated_documents").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "type", "content_data", "patient_name", "patient_cpf", "doctor_name", "doctor_crm", "created_at",
		}).AddRow(id.String(), "Atestado Médico", []byte(`{"days":5,"cid":"F41"}`), "Ana", "", "Dr. Paulo", "4567", created))

	doc, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), doc.ID)
	assert.Equal(t, model.DocumentCertificate, doc.Type)
	assert.JSONEq(t, `{"days":5,"cid":"F41"}`, string(doc.ContentData))
	assert.NoError(t, mock.ExpectationsWereMet())
}
