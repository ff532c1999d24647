package application

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func createOrFail(t *testing.T, svc *AppointmentService, input AppointmentInput) Appointment {
	t.Helper()
	appointment, err := svc.CreateAppointment(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateAppointment(%s %s) failed: %v", input.Date, input.StartTime, err)
	}
	return appointment
}

func meeting(start string, duration int) AppointmentInput {
	return AppointmentInput{Title: "Meeting", Date: "2024-06-10", StartTime: start, DurationMinutes: duration}
}

func TestAppointmentService_CreateAppointment_RejectsOverlap(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	first := createOrFail(t, svc, meeting("09:00", 60))

	_, err := svc.CreateAppointment(context.Background(), meeting("09:30", 30))
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(cErr.Conflicts) != 1 || cErr.Conflicts[0].ID != first.ID {
		t.Fatalf("expected conflict with %s, got %+v", first.ID, cErr.Conflicts)
	}
	if !strings.Contains(cErr.Error(), first.ID) {
		t.Fatalf("expected error message to name the conflicting booking, got %q", cErr.Error())
	}
	if repo.count() != 2 {
		t.Fatalf("expected only the first appointment and its break to be stored, got %d rows", repo.count())
	}
}

func TestAppointmentService_CreateAppointment_AllowsTouchingIntervals(t *testing.T) {
	t.Parallel()

	svc := newTestService(newAppointmentRepoStub(), newTestClock())
	createOrFail(t, svc, meeting("09:00", 60))

	// The companion break of the first booking occupies 10:00-10:05 and must not block.
	second := createOrFail(t, svc, meeting("10:00", 30))
	if second.EndTime != "10:30" {
		t.Fatalf("expected end time 10:30, got %s", second.EndTime)
	}
}

func TestAppointmentService_CreateAppointment_CreatesCompanionBreak(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	parent := createOrFail(t, svc, meeting("9:15", 50))

	if parent.StartTime != "09:15" || parent.EndTime != "10:05" {
		t.Fatalf("expected normalised 09:15-10:05, got %s-%s", parent.StartTime, parent.EndTime)
	}
	if parent.Status != StatusScheduled || parent.Timer.CompletedAt != nil {
		t.Fatalf("expected scheduled appointment without completion, got %+v", parent)
	}

	companions, _ := repo.ListAppointments(context.Background(), AppointmentQuery{CompanionOfID: parent.ID})
	if len(companions) != 1 {
		t.Fatalf("expected exactly one companion, got %d", len(companions))
	}
	companion := companions[0]
	if !companion.IsPomodoro || companion.StartTime != parent.EndTime || companion.DurationMinutes != DefaultBreakMinutes {
		t.Fatalf("unexpected companion %+v", companion)
	}
	if companion.EndTime != "10:10" {
		t.Fatalf("expected companion to end at 10:10, got %s", companion.EndTime)
	}
}

func TestAppointmentService_CreateAppointment_PomodoroSkipsConflictsAndCompanion(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	createOrFail(t, svc, meeting("09:00", 60))

	input := meeting("09:30", 10)
	input.IsPomodoro = true
	createOrFail(t, svc, input)

	if repo.count() != 3 {
		t.Fatalf("expected parent, its break and the standalone break, got %d rows", repo.count())
	}
}

func TestAppointmentService_CreateAppointment_ValidatesEveryField(t *testing.T) {
	t.Parallel()

	svc := newTestService(newAppointmentRepoStub(), newTestClock())
	_, err := svc.CreateAppointment(context.Background(), AppointmentInput{
		Date:            "10/06/2024",
		StartTime:       "9am",
		DurationMinutes: 0,
		SLAMinutes:      intPtr(-1),
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"title", "date", "start_time", "duration_minutes", "sla_minutes"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s validation error, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestAppointmentService_CreateAppointment_RejectsCrossingMidnight(t *testing.T) {
	t.Parallel()

	svc := newTestService(newAppointmentRepoStub(), newTestClock())

	_, err := svc.CreateAppointment(context.Background(), meeting("23:30", 30))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["duration_minutes"]; !ok {
		t.Fatalf("expected duration_minutes error, got %v", vErr.FieldErrors)
	}

	late := createOrFail(t, svc, meeting("23:00", 55))
	if late.EndTime != "23:55" {
		t.Fatalf("expected 23:55, got %s", late.EndTime)
	}
}

func TestAppointmentService_CreateAppointment_RemovesParentWhenCompanionFails(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	storeErr := errors.New("disk full")
	repo.insertErr = func(a Appointment) error {
		if a.IsPomodoro {
			return storeErr
		}
		return nil
	}
	svc := newTestService(repo, newTestClock())

	_, err := svc.CreateAppointment(context.Background(), meeting("09:00", 30))
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
	if ErrorKind(err) != "unexpected" {
		t.Fatalf("expected unexpected error kind, got %s", ErrorKind(err))
	}
	if repo.count() != 0 {
		t.Fatalf("expected nothing stored, got %d rows", repo.count())
	}
}

func TestAppointmentService_UpdateAppointment_Reschedule(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	parent := createOrFail(t, svc, meeting("09:00", 60))

	moved, err := svc.UpdateAppointment(context.Background(), parent.ID, AppointmentPatch{StartTime: stringPtr("14:00")})
	if err != nil {
		t.Fatalf("UpdateAppointment failed: %v", err)
	}
	if moved.RescheduleCount != 1 || moved.EndTime != "15:00" || moved.Status != StatusRescheduled {
		t.Fatalf("unexpected rescheduled appointment %+v", moved)
	}

	companions, _ := repo.ListAppointments(context.Background(), AppointmentQuery{CompanionOfID: parent.ID})
	if len(companions) != 1 || companions[0].StartTime != "15:00" || companions[0].EndTime != "15:05" {
		t.Fatalf("expected companion to follow to 15:00-15:05, got %+v", companions)
	}

	retitled, err := svc.UpdateAppointment(context.Background(), parent.ID, AppointmentPatch{Title: stringPtr("Planning")})
	if err != nil {
		t.Fatalf("UpdateAppointment failed: %v", err)
	}
	if retitled.RescheduleCount != 1 {
		t.Fatalf("expected title change to keep reschedule count, got %d", retitled.RescheduleCount)
	}

	longer, err := svc.UpdateAppointment(context.Background(), parent.ID, AppointmentPatch{DurationMinutes: intPtr(90)})
	if err != nil {
		t.Fatalf("UpdateAppointment failed: %v", err)
	}
	if longer.RescheduleCount != 1 || longer.EndTime != "15:30" {
		t.Fatalf("expected duration change to recompute end only, got %+v", longer)
	}
	if got := repo.row(t, companions[0].ID); got.StartTime != "15:30" {
		t.Fatalf("expected companion at 15:30, got %s", got.StartTime)
	}
}

func TestAppointmentService_UpdateAppointment_MovesCompanionToNewDate(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	parent := createOrFail(t, svc, meeting("09:00", 60))

	if _, err := svc.UpdateAppointment(context.Background(), parent.ID, AppointmentPatch{Date: stringPtr("2024-06-11")}); err != nil {
		t.Fatalf("UpdateAppointment failed: %v", err)
	}
	companions, _ := repo.ListAppointments(context.Background(), AppointmentQuery{CompanionOfID: parent.ID})
	if len(companions) != 1 || companions[0].Date != "2024-06-11" || companions[0].StartTime != "10:00" {
		t.Fatalf("expected companion on 2024-06-11 at 10:00, got %+v", companions)
	}
}

func TestAppointmentService_UpdateAppointment_StoresNormalizedDate(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	moved := createOrFail(t, svc, meeting("09:00", 60))

	updated, err := svc.UpdateAppointment(context.Background(), moved.ID, AppointmentPatch{Date: stringPtr(" 2024-06-11")})
	if err != nil {
		t.Fatalf("UpdateAppointment failed: %v", err)
	}
	if updated.Date != "2024-06-11" || repo.row(t, moved.ID).Date != "2024-06-11" {
		t.Fatalf("expected stored date 2024-06-11, got %q", repo.row(t, moved.ID).Date)
	}

	listed, err := svc.ListAppointmentsByDate(context.Background(), "2024-06-11")
	if err != nil {
		t.Fatalf("ListAppointmentsByDate failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected the moved booking and its break on 2024-06-11, got %d rows", len(listed))
	}

	overlap := meeting("09:00", 30)
	overlap.Date = "2024-06-11"
	_, err = svc.CreateAppointment(context.Background(), overlap)
	var cErr *ConflictError
	if !errors.As(err, &cErr) || len(cErr.Conflicts) != 1 || cErr.Conflicts[0].ID != moved.ID {
		t.Fatalf("expected conflict with the moved booking, got %v", err)
	}
}

func TestAppointmentService_UpdateAppointment_ConflictLeavesRowUntouched(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	createOrFail(t, svc, meeting("09:00", 60))
	second := createOrFail(t, svc, meeting("11:00", 30))

	_, err := svc.UpdateAppointment(context.Background(), second.ID, AppointmentPatch{StartTime: stringPtr("09:45"), Title: stringPtr("Moved")})
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	stored := repo.row(t, second.ID)
	if stored.StartTime != "11:00" || stored.Title != "Meeting" || stored.RescheduleCount != 0 {
		t.Fatalf("expected stored row unchanged, got %+v", stored)
	}

	// Moving within its own interval does not conflict with itself.
	if _, err := svc.UpdateAppointment(context.Background(), second.ID, AppointmentPatch{StartTime: stringPtr("11:10")}); err != nil {
		t.Fatalf("expected self-overlap to be allowed, got %v", err)
	}
}

func TestAppointmentService_UpdateAppointment_CancelledBookingsDoNotBlock(t *testing.T) {
	t.Parallel()

	svc := newTestService(newAppointmentRepoStub(), newTestClock())
	first := createOrFail(t, svc, meeting("09:00", 60))

	cancelled := StatusCancelled
	if _, err := svc.UpdateAppointment(context.Background(), first.ID, AppointmentPatch{Status: &cancelled}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	second := createOrFail(t, svc, meeting("09:30", 30))

	scheduled := StatusScheduled
	_, err := svc.UpdateAppointment(context.Background(), first.ID, AppointmentPatch{Status: &scheduled})
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.Conflicts[0].ID != second.ID {
		t.Fatalf("expected reactivation to conflict with %s, got %v", second.ID, err)
	}
}

func TestAppointmentService_UpdateAppointment_LegacyCompanionFallback(t *testing.T) {
	t.Parallel()

	parent := Appointment{ID: "p", Title: "Legacy", Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00", DurationMinutes: 60}
	orphan := Appointment{ID: "b", Title: "Break", Date: "2024-06-10", StartTime: "10:00", EndTime: "10:05", DurationMinutes: 5, IsPomodoro: true}
	repo := newAppointmentRepoStub(parent, orphan)
	svc := newTestService(repo, newTestClock())

	if _, err := svc.UpdateAppointment(context.Background(), "p", AppointmentPatch{StartTime: stringPtr("13:00")}); err != nil {
		t.Fatalf("UpdateAppointment failed: %v", err)
	}
	moved := repo.row(t, "b")
	if moved.StartTime != "14:00" || moved.CompanionOfID == nil || *moved.CompanionOfID != "p" {
		t.Fatalf("expected legacy break to move and adopt the link, got %+v", moved)
	}
}

func TestAppointmentService_UpdateAppointment_CompanionFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	parent := createOrFail(t, svc, meeting("09:00", 60))
	repo.updateErr = func(a Appointment) error {
		if a.IsPomodoro {
			return errors.New("locked")
		}
		return nil
	}

	if _, err := svc.UpdateAppointment(context.Background(), parent.ID, AppointmentPatch{StartTime: stringPtr("13:00")}); err != nil {
		t.Fatalf("expected cascade failure to be swallowed, got %v", err)
	}
	if got := repo.row(t, parent.ID); got.StartTime != "13:00" {
		t.Fatalf("expected parent update to persist, got %s", got.StartTime)
	}
}

func TestAppointmentService_UpdateAppointment_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newAppointmentRepoStub(), newTestClock())
	_, err := svc.UpdateAppointment(context.Background(), "missing", AppointmentPatch{Title: stringPtr("x")})
	var nErr *NotFoundError
	if !errors.As(err, &nErr) || nErr.ID != "missing" || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NotFoundError for missing, got %v", err)
	}
}

func TestAppointmentService_DeleteAppointment(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	parent := createOrFail(t, svc, meeting("09:00", 60))

	deleted, err := svc.DeleteAppointment(context.Background(), parent.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got %v %v", deleted, err)
	}
	if repo.count() != 0 {
		t.Fatalf("expected companion to be deleted with its parent, %d rows remain", repo.count())
	}

	deleted, err = svc.DeleteAppointment(context.Background(), parent.ID)
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false without error, got %v %v", deleted, err)
	}
}

func TestAppointmentService_DeleteBreakKeepsParent(t *testing.T) {
	t.Parallel()

	repo := newAppointmentRepoStub()
	svc := newTestService(repo, newTestClock())
	parent := createOrFail(t, svc, meeting("09:00", 60))
	companions, _ := repo.ListAppointments(context.Background(), AppointmentQuery{CompanionOfID: parent.ID})

	if _, err := svc.DeleteAppointment(context.Background(), companions[0].ID); err != nil {
		t.Fatalf("DeleteAppointment failed: %v", err)
	}
	repo.row(t, parent.ID)
}

func TestAppointmentService_ListAppointmentsByDate(t *testing.T) {
	t.Parallel()

	svc := newTestService(newAppointmentRepoStub(), newTestClock())
	createOrFail(t, svc, meeting("13:00", 30))
	createOrFail(t, svc, meeting("09:00", 30))
	other := meeting("09:00", 30)
	other.Date = "2024-06-11"
	createOrFail(t, svc, other)

	list, err := svc.ListAppointmentsByDate(context.Background(), "2024-06-10")
	if err != nil {
		t.Fatalf("ListAppointmentsByDate failed: %v", err)
	}
	var starts []string
	for _, appointment := range list {
		starts = append(starts, appointment.StartTime)
	}
	if strings.Join(starts, ",") != "09:00,09:30,13:00,13:30" {
		t.Fatalf("unexpected ordering %v", starts)
	}

	_, err = svc.ListAppointmentsByDate(context.Background(), "tomorrow")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for malformed date, got %v", err)
	}
}

func TestAppointmentService_ListAppointmentsInRange(t *testing.T) {
	t.Parallel()

	svc := newTestService(newAppointmentRepoStub(), newTestClock())
	createOrFail(t, svc, meeting("09:00", 30))

	list, err := svc.ListAppointmentsInRange(context.Background(), "2024-06-01", "2024-06-30")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected appointment and break, got %d (%v)", len(list), err)
	}
	if _, err := svc.ListAppointmentsInRange(context.Background(), "2024-06-30", "2024-06-01"); err == nil {
		t.Fatalf("expected reversed range to be rejected")
	}
}
