package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/example/appointment-engine/internal/timer"
)

func TestAppointmentService_TimerLifecycle(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	repo := newAppointmentRepoStub()
	svc := newTestService(repo, clock)
	appointment := createOrFail(t, svc, meeting("09:00", 60))
	ctx := context.Background()

	if _, err := svc.StartTimer(ctx, appointment.ID); err != nil {
		t.Fatalf("StartTimer failed: %v", err)
	}
	clock.Advance(10 * time.Minute)
	paused, err := svc.PauseTimer(ctx, appointment.ID)
	if err != nil {
		t.Fatalf("PauseTimer failed: %v", err)
	}
	if math.Abs(paused.Timer.AccumulatedMinutes-10) > 1e-9 {
		t.Fatalf("expected 10 banked minutes, got %v", paused.Timer.AccumulatedMinutes)
	}

	clock.Advance(time.Hour)
	if _, err := svc.ResumeTimer(ctx, appointment.ID); err != nil {
		t.Fatalf("ResumeTimer failed: %v", err)
	}
	clock.Advance(5 * time.Minute)
	completed, err := svc.CompleteTimer(ctx, appointment.ID)
	if err != nil {
		t.Fatalf("CompleteTimer failed: %v", err)
	}

	if completed.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %s", completed.Status)
	}
	if completed.Timer.ActualMinutes == nil || math.Abs(*completed.Timer.ActualMinutes-15) > 1e-9 {
		t.Fatalf("expected 15 actual minutes, got %v", completed.Timer.ActualMinutes)
	}
	if completed.Timer.State != timer.Stopped || completed.Timer.CompletedAt == nil || !completed.Timer.CompletedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected final timer %+v", completed.Timer)
	}
	if stored := repo.row(t, appointment.ID); stored.Status != StatusCompleted {
		t.Fatalf("expected completion to be stored, got %s", stored.Status)
	}
}

func TestAppointmentService_TimerRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	appointment := createOrFail(t, svc, meeting("09:00", 60))
	before := repo.updates

	_, err := svc.PauseTimer(context.Background(), appointment.ID)
	var tErr *timer.InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if tErr.Current != timer.PhaseStopped || tErr.Action != timer.ActionPause {
		t.Fatalf("unexpected transition error %+v", tErr)
	}
	if ErrorKind(err) != "invalid_transition" {
		t.Fatalf("expected invalid_transition kind, got %s", ErrorKind(err))
	}
	if repo.updates != before {
		t.Fatalf("expected no write on rejected transition")
	}

	if _, err := svc.StartTimer(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppointmentService_ProgressIsDerived(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	repo := newAppointmentRepoStub()
	svc := newTestService(repo, clock)
	appointment := createOrFail(t, svc, meeting("09:00", 30))
	ctx := context.Background()

	if _, err := svc.StartTimer(ctx, appointment.ID); err != nil {
		t.Fatalf("StartTimer failed: %v", err)
	}
	writes := repo.updates
	clock.Advance(20 * time.Minute)

	progress, err := svc.Progress(ctx, appointment.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.Phase != timer.PhaseRunning || math.Abs(progress.ElapsedMinutes-20) > 1e-9 || math.Abs(progress.RemainingMinutes-10) > 1e-9 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if progress.AccumulatedMinutes != 0 || repo.updates != writes {
		t.Fatalf("expected reading progress to leave stored state alone")
	}

	clock.Advance(20 * time.Minute)
	progress, _ = svc.Progress(ctx, appointment.ID)
	if !progress.Overrun || progress.RemainingMinutes != 0 {
		t.Fatalf("expected overrun after 40 minutes, got %+v", progress)
	}
}
