package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/appointment-engine/internal/application"
	"github.com/example/appointment-engine/internal/persistence/memory"
	"github.com/example/appointment-engine/internal/workschedule"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// AppointmentServiceDeps captures dependencies for constructing an
// appointment service. A nil Appointments repository is backed by a fresh
// in-memory store.
type AppointmentServiceDeps struct {
	Appointments application.AppointmentRepository
	Rules        workschedule.Source
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
	Options      []application.ServiceOption
}

// NewAppointmentService builds an appointment service using the supplied
// dependencies combined with the factory defaults. Dates are interpreted in
// UTC.
func (f *ServiceFactory) NewAppointmentService(deps AppointmentServiceDeps) *application.AppointmentService {
	repo := deps.Appointments
	if repo == nil {
		repo = application.NewStoreRepository(memory.Open())
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	opts := append([]application.ServiceOption{
		application.WithLogger(logger),
		application.WithLocation(time.UTC),
	}, deps.Options...)
	return application.NewAppointmentService(repo, deps.Rules, idGen, now, opts...)
}
