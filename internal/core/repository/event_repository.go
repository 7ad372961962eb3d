package repository

import (
	"context"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
)

// EventFilter narrows a process event query.
type EventFilter struct {
	Kind       *domain.EventKind
	Generation *int
	Limit      int
}

type EventRepository interface {
	Create(ctx context.Context, event *domain.ProcessEvent) error
	ListByProcess(ctx context.Context, processID string, filter EventFilter) ([]*domain.ProcessEvent, error)
	DeleteByProcess(ctx context.Context, processID string) error
}
