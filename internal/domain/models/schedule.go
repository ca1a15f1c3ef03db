package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar-day format used for schedule dates and day filters.
	DateLayout = "2006-01-02"
	// ClockLayout is the normalised time-of-day format for schedule boundaries.
	ClockLayout = "15:04:05"
)

// ErrInvalidWindow is returned when a schedule does not end strictly after it starts.
var ErrInvalidWindow = errors.New("end time must be after start time")

// IrrigationSchedule is a persisted request to irrigate a named parcel on a given day.
type IrrigationSchedule struct {
	ID         int64  `json:"id"`
	Date       string `json:"fecha"`
	StartTime  string `json:"hora_inicio"`
	EndTime    string `json:"hora_fin"`
	ParcelName string `json:"parcela"`
}

// StartInstant combines the schedule date and start time in loc.
func (s IrrigationSchedule) StartInstant(loc *time.Location) (time.Time, error) {
	return combine(s.Date, s.StartTime, loc)
}

// EndInstant combines the schedule date and end time in loc.
func (s IrrigationSchedule) EndInstant(loc *time.Location) (time.Time, error) {
	return combine(s.Date, s.EndTime, loc)
}

// ScheduleRequest is the payload used to create a schedule.
type ScheduleRequest struct {
	Date       string `json:"fecha" binding:"required"`
	StartTime  string `json:"horaInicio" binding:"required"`
	EndTime    string `json:"horaFin" binding:"required"`
	ParcelName string `json:"parcela" binding:"required"`
}

// Normalize validates the request and returns the schedule to persist.
func (r ScheduleRequest) Normalize() (IrrigationSchedule, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return IrrigationSchedule{}, fmt.Errorf("invalid date %q: %w", r.Date, err)
	}

	start, err := NormalizeClock(r.StartTime)
	if err != nil {
		return IrrigationSchedule{}, err
	}
	end, err := NormalizeClock(r.EndTime)
	if err != nil {
		return IrrigationSchedule{}, err
	}
	// fixed-width layout, so lexical order is chronological order
	if end <= start {
		return IrrigationSchedule{}, ErrInvalidWindow
	}

	parcel := strings.TrimSpace(r.ParcelName)
	if parcel == "" {
		return IrrigationSchedule{}, errors.New("parcel is required")
	}

	return IrrigationSchedule{
		Date:       date.Format(DateLayout),
		StartTime:  start,
		EndTime:    end,
		ParcelName: parcel,
	}, nil
}

// NormalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func NormalizeClock(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{ClockLayout, "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", value)
}

func combine(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	clock, err := NormalizeClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("combine %s %s: %w", date, clock, err)
	}
	return t, nil
}
