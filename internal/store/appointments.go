package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"coachly/internal/domain"
)

// ListFilter narrows FindMany. Zero values mean "no filter" for the string
// and enum fields; the window bounds are optional on both sides.
type ListFilter struct {
	InstructorID string
	StudentID    string
	Status       domain.AppointmentStatus
	Type         domain.AppointmentType
	Window       domain.TimeWindow
}

// AppointmentPatch carries a partial update. Nil fields are left unchanged.
// The owning instructor is immutable after create.
type AppointmentPatch struct {
	StudentID *string
	StartTime *time.Time
	EndTime   *time.Time
	Status    *domain.AppointmentStatus
	Type      *domain.AppointmentType
	Notes     *string
}

func (p AppointmentPatch) TouchesSchedule() bool {
	return p.StartTime != nil || p.EndTime != nil
}

type AppointmentRepository interface {
	// FindMany returns one page ordered by start time descending, plus the
	// total count matching the filter before pagination.
	FindMany(ctx context.Context, f ListFilter, skip, take int) ([]domain.Appointment, int, error)
	FindOne(ctx context.Context, id uuid.UUID) (domain.Appointment, error)

	// ScheduledAt returns the instructor's scheduled appointments starting
	// exactly at start. It is the conflict probe; the authoritative guard is
	// inside Insert and Update.
	ScheduledAt(ctx context.Context, instructorID string, start time.Time) ([]domain.Appointment, error)

	Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Update(ctx context.Context, instructorID string, id uuid.UUID, patch AppointmentPatch) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListScheduledBetween returns the instructor's scheduled appointments
	// whose start time falls within [from, to], ordered by start ascending.
	ListScheduledBetween(ctx context.Context, instructorID string, from, to time.Time) ([]domain.Appointment, error)

	// CountByStatus returns per-status counts and the total over a window.
	CountByStatus(ctx context.Context, window domain.TimeWindow) (map[domain.AppointmentStatus]int, int, error)
}
