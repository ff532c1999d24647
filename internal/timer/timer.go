// Package timer implements the per-appointment work timer.
//
// A Session is a value: every transition returns a new Session and leaves the
// receiver untouched, so a rejected transition never mutates state. The live
// elapsed time of a running timer is derived on read.
package timer

import (
	"fmt"
	"strings"
	"time"
)

// State is the stored timer state.
type State uint8

const (
	Stopped State = iota
	Running
	Paused
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ParseState maps a wire name onto a State. The empty string yields Stopped.
func ParseState(value string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "stopped":
		return Stopped, nil
	case "running":
		return Running, nil
	case "paused":
		return Paused, nil
	default:
		return Stopped, fmt.Errorf("timer: unknown state %q", value)
	}
}

// Phase combines the stored state with completion. A completed session is
// stored as Stopped with CompletedAt set.
type Phase string

const (
	PhaseStopped   Phase = "stopped"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
)

// Action names a transition.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
)

// ParseAction maps a wire name onto an Action.
func ParseAction(value string) (Action, error) {
	switch action := Action(strings.ToLower(strings.TrimSpace(value))); action {
	case ActionStart, ActionPause, ActionResume, ActionComplete:
		return action, nil
	default:
		return "", fmt.Errorf("timer: unknown action %q", value)
	}
}

// InvalidTransitionError reports an action that the current phase forbids.
type InvalidTransitionError struct {
	Current Phase
	Action  Action
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("timer: cannot %s while %s", e.Action, e.Current)
}

// Session is the timing state of one appointment.
type Session struct {
	State              State
	StartedAt          *time.Time
	PausedAt           *time.Time
	AccumulatedMinutes float64
	ActualMinutes      *float64
	CompletedAt        *time.Time
}

// Phase reports where the session is in its lifecycle.
func (s Session) Phase() Phase {
	switch {
	case s.CompletedAt != nil:
		return PhaseCompleted
	case s.State == Running:
		return PhaseRunning
	case s.State == Paused:
		return PhasePaused
	default:
		return PhaseStopped
	}
}

// Apply dispatches action to the matching transition.
func (s Session) Apply(action Action, now time.Time) (Session, error) {
	switch action {
	case ActionStart:
		return s.Start(now)
	case ActionPause:
		return s.Pause(now)
	case ActionResume:
		return s.Resume(now)
	case ActionComplete:
		return s.Complete(now)
	default:
		return s, &InvalidTransitionError{Current: s.Phase(), Action: action}
	}
}

// Start begins timing a stopped session.
func (s Session) Start(now time.Time) (Session, error) {
	if s.Phase() != PhaseStopped {
		return s, &InvalidTransitionError{Current: s.Phase(), Action: ActionStart}
	}
	next := s
	next.State = Running
	next.StartedAt = timePtr(now)
	next.PausedAt = nil
	return next, nil
}

// Pause banks the running segment.
func (s Session) Pause(now time.Time) (Session, error) {
	if s.Phase() != PhaseRunning {
		return s, &InvalidTransitionError{Current: s.Phase(), Action: ActionPause}
	}
	next := s
	next.AccumulatedMinutes = s.AccumulatedMinutes + s.segment(now)
	next.State = Paused
	next.PausedAt = timePtr(now)
	return next, nil
}

// Resume starts a new running segment after a pause.
func (s Session) Resume(now time.Time) (Session, error) {
	if s.Phase() != PhasePaused {
		return s, &InvalidTransitionError{Current: s.Phase(), Action: ActionResume}
	}
	next := s
	next.State = Running
	next.StartedAt = timePtr(now)
	return next, nil
}

// Complete finalises a running or paused session.
func (s Session) Complete(now time.Time) (Session, error) {
	phase := s.Phase()
	if phase != PhaseRunning && phase != PhasePaused {
		return s, &InvalidTransitionError{Current: phase, Action: ActionComplete}
	}
	next := s
	if phase == PhaseRunning {
		next.AccumulatedMinutes = s.AccumulatedMinutes + s.segment(now)
	}
	actual := next.AccumulatedMinutes
	next.ActualMinutes = &actual
	next.CompletedAt = timePtr(now)
	next.State = Stopped
	return next, nil
}

// Elapsed is the live total: banked minutes plus the current running segment.
func (s Session) Elapsed(now time.Time) float64 {
	if s.Phase() != PhaseRunning {
		return s.AccumulatedMinutes
	}
	return s.AccumulatedMinutes + s.segment(now)
}

func (s Session) segment(now time.Time) float64 {
	if s.StartedAt == nil {
		return 0
	}
	minutes := now.Sub(*s.StartedAt).Minutes()
	if minutes < 0 {
		return 0
	}
	return minutes
}

func timePtr(t time.Time) *time.Time {
	return &t
}
