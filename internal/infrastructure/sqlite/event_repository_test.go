package sqlite

import (
	"context"
	"testing"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
)

func setupEventRepo(t *testing.T) repository.EventRepository {
	t.Helper()

	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewEventRepository(db)
}

func TestEventRepositoryCreateAndList(t *testing.T) {
	repo := setupEventRepo(t)
	ctx := context.Background()

	events := []*domain.ProcessEvent{
		domain.NewProcessEvent("web", 1, domain.EventStarted).WithPID(100),
		domain.NewProcessEvent("web", 1, domain.EventExited).WithExitCode(0),
		domain.NewProcessEvent("web", 2, domain.EventStarted).WithPID(101),
		domain.NewProcessEvent("web", 2, domain.EventFailed).WithExitCode(1).WithDetail("stdin write failed"),
		domain.NewProcessEvent("worker", 1, domain.EventStarted).WithPID(102),
	}
	for _, e := range events {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected Create to backfill the row id")
		}
	}

	got, err := repo.ListByProcess(ctx, "web", repository.EventFilter{})
	if err != nil {
		t.Fatalf("ListByProcess failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 events for web, got %d", len(got))
	}
	if got[0].Kind != domain.EventStarted || got[3].Kind != domain.EventFailed {
		t.Errorf("expected insertion order, got %s first and %s last", got[0].Kind, got[3].Kind)
	}
	if got[0].PID == nil || *got[0].PID != 100 {
		t.Errorf("expected pid 100, got %v", got[0].PID)
	}
	if got[3].Detail == nil || *got[3].Detail != "stdin write failed" {
		t.Errorf("expected detail to round-trip, got %v", got[3].Detail)
	}
	if got[1].Detail != nil {
		t.Errorf("expected no detail on a clean exit, got %q", *got[1].Detail)
	}
}

func TestEventRepositoryFilters(t *testing.T) {
	repo := setupEventRepo(t)
	ctx := context.Background()

	for gen := 1; gen <= 3; gen++ {
		if err := repo.Create(ctx, domain.NewProcessEvent("app", gen, domain.EventStarted)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := repo.Create(ctx, domain.NewProcessEvent("app", gen, domain.EventExited)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	kind := domain.EventExited
	got, err := repo.ListByProcess(ctx, "app", repository.EventFilter{Kind: &kind})
	if err != nil {
		t.Fatalf("ListByProcess failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 exited events, got %d", len(got))
	}

	gen := 2
	got, err = repo.ListByProcess(ctx, "app", repository.EventFilter{Generation: &gen})
	if err != nil {
		t.Fatalf("ListByProcess failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 events for generation 2, got %d", len(got))
	}

	got, err = repo.ListByProcess(ctx, "app", repository.EventFilter{Kind: &kind, Generation: &gen, Limit: 1})
	if err != nil {
		t.Fatalf("ListByProcess failed: %v", err)
	}
	if len(got) != 1 || got[0].Generation != 2 || got[0].Kind != domain.EventExited {
		t.Errorf("unexpected combined filter result: %+v", got)
	}
}

func TestEventRepositoryDeleteByProcess(t *testing.T) {
	repo := setupEventRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, domain.NewProcessEvent("doomed", 1, domain.EventStarted)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, domain.NewProcessEvent("kept", 1, domain.EventStarted)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.DeleteByProcess(ctx, "doomed"); err != nil {
		t.Fatalf("DeleteByProcess failed: %v", err)
	}

	got, err := repo.ListByProcess(ctx, "doomed", repository.EventFilter{})
	if err != nil {
		t.Fatalf("ListByProcess failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events after delete, got %d", len(got))
	}

	got, err = repo.ListByProcess(ctx, "kept", repository.EventFilter{})
	if err != nil {
		t.Fatalf("ListByProcess failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected the other process untouched, got %d events", len(got))
	}

	// Deleting an unknown process is a no-op
	if err := repo.DeleteByProcess(ctx, "never-existed"); err != nil {
		t.Errorf("expected no error for unknown process, got %v", err)
	}
}
