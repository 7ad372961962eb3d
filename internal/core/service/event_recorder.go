package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
)

const recordTimeout = 5 * time.Second

// EventRecorder persists supervisor lifecycle events. A failed write is
// logged and dropped; the audit trail must never stall the supervisor.
type EventRecorder struct {
	eventRepo repository.EventRepository
	log       zerolog.Logger
}

func NewEventRecorder(eventRepo repository.EventRepository, log zerolog.Logger) *EventRecorder {
	return &EventRecorder{
		eventRepo: eventRepo,
		log:       log,
	}
}

// Record implements supervisor.EventSink.
func (r *EventRecorder) Record(event *domain.ProcessEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.eventRepo.Create(ctx, event); err != nil {
		r.log.Error().Err(err).
			Str("proc", event.ProcessID).
			Str("kind", string(event.Kind)).
			Msg("failed to record process event")
	}
}

// ListEvents returns the persisted lifecycle events of one process.
func (r *EventRecorder) ListEvents(ctx context.Context, processID string, filter repository.EventFilter) ([]*domain.ProcessEvent, error) {
	return r.eventRepo.ListByProcess(ctx, processID, filter)
}

// ForgetProcess removes the audit trail of a process, used when the
// registration itself is removed.
func (r *EventRecorder) ForgetProcess(ctx context.Context, processID string) error {
	return r.eventRepo.DeleteByProcess(ctx, processID)
}
