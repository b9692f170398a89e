package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
	"github.com/psicare/manager-api/pkg/logger"
)

// Emitter records domain events in the outbox. The outbox processor relays
// them to the broker.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

type EventService struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
}

func NewEventService(outboxRepo repository.OutboxRepository, logger *logger.Logger) *EventService {
	return &EventService{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.logger.Debug("Event recorded", "event_id", event.ID.String(), "event_type", eventType)
	return nil
}

// EmitLogged records the event on the caller's context once the primary
// write has committed. A failure is logged and never surfaces to the caller.
func EmitLogged(ctx context.Context, emitter Emitter, log *logger.Logger, eventType string, payload interface{}) {
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, eventType, payload); err != nil {
		log.Warn(err, "Failed to record domain event", "event_type", eventType)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, string, interface{}) error { return nil }
