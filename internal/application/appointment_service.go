package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/appointment-engine/internal/persistence"
	"github.com/example/appointment-engine/internal/scheduler"
	"github.com/example/appointment-engine/internal/timeutil"
	"github.com/example/appointment-engine/internal/workschedule"
)

// DefaultBreakMinutes is the length of the companion Pomodoro break.
const DefaultBreakMinutes = 5

const serviceName = "AppointmentService"

var errRepositoryNotConfigured = errors.New("appointment repository not configured")

// AppointmentRepository captures the persistence interactions needed by the service.
type AppointmentRepository interface {
	InsertAppointment(ctx context.Context, appointment Appointment) error
	UpdateAppointment(ctx context.Context, appointment Appointment) error
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
	ListAppointments(ctx context.Context, query AppointmentQuery) ([]Appointment, error)
}

// AppointmentService orchestrates conflict detection, companion breaks,
// timers, recurrence and persistence for appointments. Mutations are
// serialized so the conflict check and the write it guards cannot interleave
// with another mutation.
type AppointmentService struct {
	appointments AppointmentRepository
	rules        workschedule.Source
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
	location     *time.Location
	breakMinutes int
	slotMinutes  int
	cacheTTL     time.Duration
	cache        *availabilityCache

	mu sync.Mutex
}

// ServiceOption configures an AppointmentService.
type ServiceOption func(*AppointmentService)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *AppointmentService) { s.logger = logger }
}

// WithLocation sets the zone in which dates and start times are interpreted.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *AppointmentService) { s.location = loc }
}

// WithBreakMinutes sets the companion break length.
func WithBreakMinutes(minutes int) ServiceOption {
	return func(s *AppointmentService) { s.breakMinutes = minutes }
}

// WithSlotMinutes sets the availability scan granularity.
func WithSlotMinutes(minutes int) ServiceOption {
	return func(s *AppointmentService) { s.slotMinutes = minutes }
}

// WithAvailabilityCacheTTL sets how long availability scans are cached.
func WithAvailabilityCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *AppointmentService) { s.cacheTTL = ttl }
}

// NewAppointmentService wires dependencies for appointment operations. A nil
// rule source falls back to the built-in default week.
func NewAppointmentService(appointments AppointmentRepository, rules workschedule.Source, idGenerator func() string, now func() time.Time, opts ...ServiceOption) *AppointmentService {
	s := &AppointmentService{
		appointments: appointments,
		rules:        rules,
		idGenerator:  idGenerator,
		now:          now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rules == nil {
		s.rules = workschedule.StaticSource{Week: workschedule.DefaultWeek()}
	}
	if s.idGenerator == nil {
		s.idGenerator = func() string { return "" }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.breakMinutes <= 0 {
		s.breakMinutes = DefaultBreakMinutes
	}
	if s.slotMinutes <= 0 {
		s.slotMinutes = scheduler.DefaultGranularity
	}
	s.logger = defaultLogger(s.logger)
	s.cache = newAvailabilityCache(s.cacheTTL)
	return s
}

func (s *AppointmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, serviceName, operation, attrs...)
}

// CreateAppointment books a new appointment. A non-Pomodoro booking is
// rejected with a ConflictError when it overlaps another booking on its date
// and, once stored, receives a companion break starting at its end time.
func (s *AppointmentService) CreateAppointment(ctx context.Context, input AppointmentInput) (appointment Appointment, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateAppointment",
		"date", input.Date,
		"start_time", input.StartTime,
		"is_pomodoro", input.IsPomodoro,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create appointment", "appointment created", "appointment_id", appointment.ID)
	}()

	if s.appointments == nil {
		err = errRepositoryNotConfigured
		return
	}

	candidate, err := s.newAppointment(input)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.ensureNoConflicts(ctx, candidate); err != nil {
		return
	}
	if appointment, err = s.insertWithCompanion(ctx, candidate); err != nil {
		return
	}
	s.cache.Invalidate()
	return
}

// UpdateAppointment applies patch to the appointment with id. A schedule
// change on a non-Pomodoro is conflict checked excluding the appointment
// itself and then carried over to its companion break.
func (s *AppointmentService) UpdateAppointment(ctx context.Context, id string, patch AppointmentPatch) (appointment Appointment, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateAppointment", "appointment_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update appointment", "appointment updated",
			"reschedule_count", appointment.RescheduleCount)
	}()

	if s.appointments == nil {
		err = errRepositoryNotConfigured
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(ctx, id)
	if err != nil {
		return
	}

	next, change, err := patch.Apply(existing)
	if err != nil {
		return
	}
	if change.Any() {
		vErr := &ValidationError{}
		s.checkFitsDay(next, vErr)
		if vErr.HasErrors() {
			err = vErr
			return
		}
	}

	reactivated := existing.Status == StatusCancelled && next.Status != StatusCancelled
	if change.Any() || reactivated {
		if err = s.ensureNoConflicts(ctx, next); err != nil {
			return
		}
	}

	next.UpdatedAt = s.now()
	if err = s.appointments.UpdateAppointment(ctx, next); err != nil {
		err = mapRepoError(err, id)
		return
	}

	if !next.IsPomodoro && change.Any() {
		s.moveCompanion(ctx, logger, existing, next)
	}

	s.cache.Invalidate()
	appointment = next
	return
}

// DeleteAppointment removes the appointment with id together with its
// companion break. It reports false when no such appointment exists.
func (s *AppointmentService) DeleteAppointment(ctx context.Context, id string) (deleted bool, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "DeleteAppointment", "appointment_id", id)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete appointment", "appointment delete handled", "deleted", deleted)
	}()

	if s.appointments == nil {
		err = errRepositoryNotConfigured
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.appointments.GetAppointment(ctx, id)
	if err != nil {
		if isNotFoundError(err) {
			err = nil
		}
		return
	}

	if !existing.IsPomodoro {
		var companions []Appointment
		companions, err = s.appointments.ListAppointments(ctx, AppointmentQuery{CompanionOfID: existing.ID})
		if err != nil {
			return
		}
		for _, companion := range companions {
			if err = s.appointments.DeleteAppointment(ctx, companion.ID); err != nil && !isNotFoundError(err) {
				return
			}
			err = nil
		}
	}

	if err = s.appointments.DeleteAppointment(ctx, id); err != nil {
		if isNotFoundError(err) {
			err = nil
		}
		return
	}

	s.cache.Invalidate()
	deleted = true
	return
}

// ListAppointmentsByDate returns the bookings of one day ordered by start
// time.
func (s *AppointmentService) ListAppointmentsByDate(ctx context.Context, date string) ([]Appointment, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}
	if s.appointments == nil {
		return nil, errRepositoryNotConfigured
	}
	if _, err := timeutil.ParseDate(date); err != nil {
		vErr := &ValidationError{}
		vErr.add("date", err.Error())
		return nil, vErr
	}

	appointments, err := s.appointments.ListAppointments(ctx, AppointmentQuery{Date: date})
	if err != nil {
		return nil, err
	}
	sortAppointments(appointments)
	return appointments, nil
}

// ListAppointmentsInRange returns the bookings between two dates, inclusive.
func (s *AppointmentService) ListAppointmentsInRange(ctx context.Context, from, to string) ([]Appointment, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}
	if s.appointments == nil {
		return nil, errRepositoryNotConfigured
	}
	vErr := &ValidationError{}
	fromDay, fromErr := timeutil.ParseDate(from)
	if fromErr != nil {
		vErr.add("from", fromErr.Error())
	}
	toDay, toErr := timeutil.ParseDate(to)
	if toErr != nil {
		vErr.add("to", toErr.Error())
	}
	if fromErr == nil && toErr == nil && toDay.Before(fromDay) {
		vErr.add("to", "range end must not be before its start")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	appointments, err := s.appointments.ListAppointments(ctx, AppointmentQuery{FromDate: from, ToDate: to})
	if err != nil {
		return nil, err
	}
	sortAppointments(appointments)
	return appointments, nil
}

// GetAppointment loads one appointment.
func (s *AppointmentService) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	if s == nil {
		return Appointment{}, fmt.Errorf("AppointmentService is nil")
	}
	if s.appointments == nil {
		return Appointment{}, errRepositoryNotConfigured
	}
	return s.get(ctx, id)
}

// EffectiveStatus is the SLA view of appointment at the service clock.
func (s *AppointmentService) EffectiveStatus(appointment Appointment) Status {
	return appointment.EffectiveStatus(s.now(), s.location)
}

func (s *AppointmentService) get(ctx context.Context, id string) (Appointment, error) {
	appointment, err := s.appointments.GetAppointment(ctx, id)
	if err != nil {
		return Appointment{}, mapRepoError(err, id)
	}
	return appointment, nil
}

func (s *AppointmentService) newAppointment(input AppointmentInput) (Appointment, error) {
	vErr := validateAppointmentInput(input)

	appointment := Appointment{
		UserID:          strings.TrimSpace(input.UserID),
		Title:           strings.TrimSpace(input.Title),
		Description:     input.Description,
		Date:            strings.TrimSpace(input.Date),
		DurationMinutes: input.DurationMinutes,
		IsPomodoro:      input.IsPomodoro,
		Status:          StatusScheduled,
	}
	if input.SLAMinutes != nil {
		sla := *input.SLAMinutes
		appointment.SLAMinutes = &sla
	}
	if minutes, err := timeutil.ToMinutes(input.StartTime); err == nil {
		appointment.StartTime = timeutil.ToTimeString(minutes)
		appointment.EndTime = timeutil.ToTimeString(minutes + input.DurationMinutes)
	}

	if !vErr.HasErrors() {
		s.checkFitsDay(appointment, vErr)
	}
	if vErr.HasErrors() {
		return Appointment{}, vErr
	}

	createdAt := s.now()
	appointment.ID = s.idGenerator()
	appointment.CreatedAt = createdAt
	appointment.UpdatedAt = createdAt
	return appointment, nil
}

func validateAppointmentInput(input AppointmentInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if _, err := timeutil.ParseDate(input.Date); err != nil {
		vErr.add("date", err.Error())
	}
	if _, err := timeutil.ToMinutes(input.StartTime); err != nil {
		vErr.add("start_time", err.Error())
	}
	if input.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "duration must be a positive number of minutes")
	}
	if input.SLAMinutes != nil && *input.SLAMinutes < 0 {
		vErr.add("sla_minutes", "sla must not be negative")
	}
	return vErr
}

// checkFitsDay rejects bookings that, together with their companion break,
// would run past the end of their date.
func (s *AppointmentService) checkFitsDay(appointment Appointment, vErr *ValidationError) {
	start, err := timeutil.ToMinutes(appointment.StartTime)
	if err != nil {
		return
	}
	end := start + appointment.DurationMinutes
	if end > timeutil.MinutesPerDay {
		vErr.add("duration_minutes", "appointment must end by 24:00 on its date")
		return
	}
	if !appointment.IsPomodoro && end+s.breakMinutes > timeutil.MinutesPerDay {
		vErr.add("duration_minutes", fmt.Sprintf("appointment and its %d minute break must end by 24:00 on its date", s.breakMinutes))
	}
}

// ensureNoConflicts returns a ConflictError listing every booking on the
// candidate's date that overlaps it. Pomodoros and cancelled candidates are
// never checked.
func (s *AppointmentService) ensureNoConflicts(ctx context.Context, candidate Appointment) error {
	if candidate.IsPomodoro || candidate.Status == StatusCancelled {
		return nil
	}
	existing, err := s.appointments.ListAppointments(ctx, AppointmentQuery{Date: candidate.Date})
	if err != nil {
		return err
	}
	return conflictsWith(candidate, existing)
}

func conflictsWith(candidate Appointment, existing []Appointment) error {
	bookings := make([]scheduler.Booking, 0, len(existing))
	byID := make(map[string]Appointment, len(existing))
	for _, appointment := range existing {
		bookings = append(bookings, appointment.booking())
		byID[appointment.ID] = appointment
	}

	overlapping, err := scheduler.FindConflicts(candidate.Date, candidate.StartTime, candidate.DurationMinutes, bookings, candidate.ID)
	if err != nil {
		return err
	}
	if len(overlapping) == 0 {
		return nil
	}

	cErr := &ConflictError{
		Date:      candidate.Date,
		StartTime: candidate.StartTime,
		EndTime:   candidate.EndTime,
		Conflicts: make([]Appointment, 0, len(overlapping)),
	}
	for _, booking := range overlapping {
		cErr.Conflicts = append(cErr.Conflicts, byID[booking.ID])
	}
	return cErr
}

// insertWithCompanion stores parent and, for a non-Pomodoro, its companion
// break. When the companion cannot be stored the parent is removed again.
func (s *AppointmentService) insertWithCompanion(ctx context.Context, parent Appointment) (Appointment, error) {
	if err := s.appointments.InsertAppointment(ctx, parent); err != nil {
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	if parent.IsPomodoro {
		return parent, nil
	}

	companion, err := s.companionFor(parent)
	if err != nil {
		return Appointment{}, err
	}
	if err := s.appointments.InsertAppointment(ctx, companion); err != nil {
		if delErr := s.appointments.DeleteAppointment(ctx, parent.ID); delErr != nil {
			return Appointment{}, fmt.Errorf("insert companion break: %w (removing appointment %s failed: %v)", err, parent.ID, delErr)
		}
		return Appointment{}, fmt.Errorf("insert companion break: %w", err)
	}
	return parent, nil
}

func (s *AppointmentService) companionFor(parent Appointment) (Appointment, error) {
	end, err := timeutil.AddMinutes(parent.EndTime, s.breakMinutes)
	if err != nil {
		return Appointment{}, err
	}
	parentID := parent.ID
	return Appointment{
		ID:              s.idGenerator(),
		UserID:          parent.UserID,
		Title:           "Break",
		Description:     "Break after " + parent.Title,
		Date:            parent.Date,
		StartTime:       parent.EndTime,
		EndTime:         end,
		DurationMinutes: s.breakMinutes,
		IsPomodoro:      true,
		CompanionOfID:   &parentID,
		Status:          StatusScheduled,
		CreatedAt:       parent.CreatedAt,
		UpdatedAt:       parent.UpdatedAt,
	}, nil
}

// moveCompanion re-anchors the companion break of before to the end of after.
// Failures are logged and do not fail the update.
func (s *AppointmentService) moveCompanion(ctx context.Context, logger *slog.Logger, before, after Appointment) {
	companion, ok, err := s.findCompanion(ctx, before)
	if err != nil {
		logger.WarnContext(ctx, "failed to locate companion break", "error", err)
		return
	}
	if !ok {
		logger.DebugContext(ctx, "no companion break to move")
		return
	}

	moved := companion
	moved.Date = after.Date
	moved.StartTime = after.EndTime
	if moved.EndTime, err = timeutil.AddMinutes(after.EndTime, companion.DurationMinutes); err != nil {
		logger.WarnContext(ctx, "failed to move companion break", "error", err, "companion_id", companion.ID)
		return
	}
	if moved.CompanionOfID == nil {
		parentID := after.ID
		moved.CompanionOfID = &parentID
	}
	moved.UpdatedAt = after.UpdatedAt

	if err := s.appointments.UpdateAppointment(ctx, moved); err != nil {
		logger.WarnContext(ctx, "failed to move companion break", "error", err, "companion_id", companion.ID)
		return
	}
	logger.DebugContext(ctx, "companion break moved",
		"companion_id", moved.ID, "date", moved.Date, "start_time", moved.StartTime)
}

// findCompanion follows the explicit companion link. Rows written before the
// link existed fall back to the first unlinked Pomodoro on the parent's date.
func (s *AppointmentService) findCompanion(ctx context.Context, parent Appointment) (Appointment, bool, error) {
	linked, err := s.appointments.ListAppointments(ctx, AppointmentQuery{CompanionOfID: parent.ID})
	if err != nil {
		return Appointment{}, false, err
	}
	if len(linked) > 0 {
		sortAppointments(linked)
		return linked[0], true, nil
	}

	pomodoro := true
	candidates, err := s.appointments.ListAppointments(ctx, AppointmentQuery{Date: parent.Date, IsPomodoro: &pomodoro})
	if err != nil {
		return Appointment{}, false, err
	}
	sortAppointments(candidates)
	for _, candidate := range candidates {
		if candidate.CompanionOfID == nil {
			return candidate, true, nil
		}
	}
	return Appointment{}, false, nil
}

func sortAppointments(appointments []Appointment) {
	sort.SliceStable(appointments, func(i, j int) bool {
		a, b := appointments[i], appointments[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}

func mapRepoError(err error, id string) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return &NotFoundError{ID: id}
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
