package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/metrics"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*model.OutboxEvent)
	return events, args.Error(1)
}

func (m *mockOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	return m.Called(ctx, id, status, errorMessage).Error(0)
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func TestOutboxCleanupWorker_UsesRetentionCutoff(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := new(mockOutboxRepo)
	repo.On("DeleteProcessedBefore", mock.Anything, now.Add(-72*time.Hour)).Return(int64(4), nil)

	w := NewOutboxCleanupWorker(repo, 72*time.Hour, time.Hour, logger.Nop(), metrics.NewNop())
	w.now = func() time.Time { return now }

	rows, err := w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), rows)
	repo.AssertExpectations(t)
}

func TestOutboxCleanupWorker_WrapsErrors(t *testing.T) {
	repo := new(mockOutboxRepo)
	repo.On("DeleteProcessedBefore", mock.Anything, mock.Anything).Return(int64(0), errors.New("timeout"))

	w := NewOutboxCleanupWorker(repo, time.Hour, time.Hour, logger.Nop(), metrics.NewNop())
	_, err := w.Cleanup(context.Background())
	assert.ErrorContains(t, err, "failed to cleanup outbox events")
}
