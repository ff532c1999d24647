// Package http exposes the appointment engine over JSON using gin.
//
// The router serves:
//   - GET /healthz: store liveness.
//   - GET /api/appointments?date= (or ?from=&to=), POST /api/appointments,
//     GET/PATCH/DELETE /api/appointments/:id: appointment lifecycle. Creating a
//     non-Pomodoro appointment also books its companion break.
//   - POST /api/appointments/:id/timer/:action with action one of start, pause,
//     resume, complete; GET /api/appointments/:id/progress.
//   - POST /api/recurrences/preview, POST /api/recurrences: expand or book a
//     recurring series.
//   - POST /api/work-schedule/validate, GET /api/availability?date=&user_id=.
//   - GET /api/calendar.ics?from=&to=: iCalendar export with ETag.
//
// Errors share one body: {"error_code","message","errors","conflicts"}.
// Validation and format failures map to 422, conflicts and rejected timer
// transitions to 409, unknown ids to 404.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
