// Package ics renders appointments as an iCalendar feed.
//
// Appointments are wall-clock bookings, so DTSTART and DTEND are written as
// floating local times. The feed's ETag is the blake2b-256 digest of the body;
// DTSTAMP is taken from each appointment's UpdatedAt so an unchanged range
// always renders to the same bytes.
package ics

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"golang.org/x/crypto/blake2b"

	"github.com/example/appointment-engine/internal/application"
	"github.com/example/appointment-engine/internal/timeutil"
)

// ContentType is the media type of a rendered feed.
const ContentType = "text/calendar; charset=utf-8"

const (
	floatingLayout = "20060102T150405"
	defaultProduct = "-//appointment-engine//calendar export//EN"
	breakSummary   = "Break"
)

// Options customise the calendar header.
type Options struct {
	ProductID string
	Name      string
}

// Document is a rendered feed.
type Document struct {
	Body []byte
	ETag string
}

// Render writes appointments into one VCALENDAR. Pomodoro breaks are exported
// as transparent "Break" events so calendar clients do not show them as busy.
func Render(appointments []application.Appointment, opts Options) (Document, error) {
	cal := ical.NewCalendar()
	product := opts.ProductID
	if product == "" {
		product = defaultProduct
	}
	cal.SetProductId(product)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	var errs error
	for _, appointment := range appointments {
		if err := addEvent(cal, appointment); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if errs != nil {
		return Document{}, errs
	}

	body := []byte(cal.Serialize())
	return Document{Body: body, ETag: ETag(body)}, nil
}

// ETag returns the strong entity tag of body.
func ETag(body []byte) string {
	sum := blake2b.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func addEvent(cal *ical.Calendar, a application.Appointment) error {
	day, err := timeutil.ParseDate(a.Date)
	if err != nil {
		return fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	startMinutes, err := timeutil.ToMinutes(a.StartTime)
	if err != nil {
		return fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	start := timeutil.At(day, startMinutes, time.UTC)
	end := start.Add(time.Duration(a.DurationMinutes) * time.Minute)

	event := cal.AddEvent(a.ID)
	event.SetProperty(ical.ComponentPropertyDtStart, start.Format(floatingLayout))
	event.SetProperty(ical.ComponentPropertyDtEnd, end.Format(floatingLayout))
	event.SetDtStampTime(stamp(a))
	if !a.CreatedAt.IsZero() {
		event.SetCreatedTime(a.CreatedAt)
	}
	if !a.UpdatedAt.IsZero() {
		event.SetModifiedAt(a.UpdatedAt)
	}

	if a.IsPomodoro {
		event.SetSummary(breakSummary)
		event.SetTimeTransparency(ical.TransparencyTransparent)
		event.SetProperty(ical.ComponentPropertyCategories, "POMODORO")
		if a.CompanionOfID != nil {
			event.AddProperty(ical.ComponentPropertyRelatedTo, *a.CompanionOfID)
		}
	} else {
		event.SetSummary(a.Title)
		event.SetTimeTransparency(ical.TransparencyOpaque)
	}
	if a.Description != "" {
		event.SetDescription(a.Description)
	}
	if a.RecurringTaskID != nil && *a.RecurringTaskID != a.ID {
		event.AddProperty(ical.ComponentPropertyRelatedTo, *a.RecurringTaskID)
	}

	switch a.Status {
	case application.StatusCancelled:
		event.SetStatus(ical.ObjectStatusCancelled)
	case application.StatusScheduled:
		event.SetStatus(ical.ObjectStatusConfirmed)
	default:
		event.SetStatus(ical.ObjectStatusConfirmed)
		event.SetProperty(ical.ComponentProperty("X-APPOINTMENT-STATUS"), a.Status.String())
	}
	return nil
}

func stamp(a application.Appointment) time.Time {
	switch {
	case !a.UpdatedAt.IsZero():
		return a.UpdatedAt
	case !a.CreatedAt.IsZero():
		return a.CreatedAt
	default:
		return time.Unix(0, 0).UTC()
	}
}
