package appointments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachly/internal/authz"
	"coachly/internal/domain"
	"coachly/internal/store"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// NewValidationError reports a rejected input with a caller-facing message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func validationError(msg string) error {
	return NewValidationError(msg)
}

type Service struct {
	repo store.AppointmentRepository
	tz   *time.Location
}

// NewService builds the appointment service. tz is the reference timezone for
// calendar-day availability queries; nil means UTC.
func NewService(repo store.AppointmentRepository, tz *time.Location) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{repo: repo, tz: tz}
}

type ListInput struct {
	Status       domain.AppointmentStatus
	Type         domain.AppointmentType
	StudentID    string
	InstructorID string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

type ListResult struct {
	Appointments []domain.Appointment
	Page         int
	PageSize     int
	Total        int
	Pages        int
}

// List returns one page of appointments ordered by start time descending.
// Non-admin actors are silently scoped to their own calendar: the scope
// overrides any explicit instructor filter rather than denying the request.
func (s *Service) List(ctx context.Context, actor domain.Actor, in ListInput) (ListResult, error) {
	if in.Status != "" && !in.Status.Valid() {
		return ListResult{}, validationError("invalid status filter")
	}
	if in.Type != "" && !in.Type.Valid() {
		return ListResult{}, validationError("invalid type filter")
	}

	page := in.Page
	if page < 1 {
		page = DefaultPage
	}
	size := in.PageSize
	if size < 1 {
		size = DefaultPageSize
	}

	filter := store.ListFilter{
		InstructorID: in.InstructorID,
		StudentID:    in.StudentID,
		Status:       in.Status,
		Type:         in.Type,
		Window:       window(in.From, in.To),
	}
	if owner, restricted := authz.PolicyFor(actor.Role).OwnerScope(actor.ID); restricted {
		filter.InstructorID = owner
	}

	items, total, err := s.repo.FindMany(ctx, filter, (page-1)*size, size)
	if err != nil {
		return ListResult{}, err
	}

	return ListResult{
		Appointments: items,
		Page:         page,
		PageSize:     size,
		Total:        total,
		Pages:        (total + size - 1) / size,
	}, nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Appointment, error) {
	appt, err := s.repo.FindOne(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !authz.PolicyFor(actor.Role).CanAccess(actor.ID, appt.InstructorID, authz.ActionRead) {
		return domain.Appointment{}, authz.ErrForbidden
	}
	return appt, nil
}

type CreateInput struct {
	InstructorID string
	StudentID    string
	StartTime    time.Time
	EndTime      time.Time
	Type         domain.AppointmentType
	Notes        string

	// Status is accepted for transport compatibility and ignored: new
	// appointments are always persisted as scheduled.
	Status domain.AppointmentStatus
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Appointment, error) {
	if strings.TrimSpace(in.InstructorID) == "" {
		return domain.Appointment{}, validationError("instructor_id is required")
	}
	if strings.TrimSpace(in.StudentID) == "" {
		return domain.Appointment{}, validationError("student_id is required")
	}
	if !in.Type.Valid() {
		return domain.Appointment{}, validationError("invalid appointment type")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return domain.Appointment{}, validationError("start_time and end_time are required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if !end.After(start) {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}

	if !authz.PolicyFor(actor.Role).CanAccess(actor.ID, in.InstructorID, authz.ActionCreate) {
		return domain.Appointment{}, authz.ErrForbidden
	}

	// Fast-path probe; the store enforces the same rule atomically under a
	// per-instructor lock.
	taken, err := s.repo.ScheduledAt(ctx, in.InstructorID, start)
	if err != nil {
		return domain.Appointment{}, err
	}
	if domain.SlotTaken(start, domain.StatusScheduled, taken, uuid.Nil) {
		return domain.Appointment{}, store.ErrConflict
	}

	return s.repo.Insert(ctx, domain.Appointment{
		InstructorID: in.InstructorID,
		StudentID:    in.StudentID,
		StartTime:    start,
		EndTime:      end,
		Status:       domain.StatusScheduled,
		Type:         in.Type,
		Notes:        in.Notes,
	})
}

type UpdateInput struct {
	StudentID *string
	StartTime *time.Time
	EndTime   *time.Time
	Status    *domain.AppointmentStatus
	Type      *domain.AppointmentType
	Notes     *string
}

func (s *Service) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in UpdateInput) (domain.Appointment, error) {
	if in.StudentID != nil && strings.TrimSpace(*in.StudentID) == "" {
		return domain.Appointment{}, validationError("student_id must not be empty")
	}
	if in.Status != nil && !in.Status.Valid() {
		return domain.Appointment{}, validationError("invalid status")
	}
	if in.Type != nil && !in.Type.Valid() {
		return domain.Appointment{}, validationError("invalid appointment type")
	}

	existing, err := s.repo.FindOne(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !authz.PolicyFor(actor.Role).CanAccess(actor.ID, existing.InstructorID, authz.ActionUpdate) {
		return domain.Appointment{}, authz.ErrForbidden
	}

	patch := store.AppointmentPatch{
		StudentID: in.StudentID,
		Status:    in.Status,
		Type:      in.Type,
		Notes:     in.Notes,
	}
	if in.StartTime != nil {
		start := in.StartTime.UTC()
		patch.StartTime = &start
	}
	if in.EndTime != nil {
		end := in.EndTime.UTC()
		patch.EndTime = &end
	}

	next := effective(existing, patch)
	if !next.EndTime.After(next.StartTime) {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}

	// Reschedules re-run the conflict probe against the instructor's other
	// scheduled slots; the record being updated is excluded.
	if patch.TouchesSchedule() {
		taken, err := s.repo.ScheduledAt(ctx, existing.InstructorID, next.StartTime)
		if err != nil {
			return domain.Appointment{}, err
		}
		if domain.SlotTaken(next.StartTime, next.Status, taken, existing.ID) {
			return domain.Appointment{}, store.ErrConflict
		}
	}

	return s.repo.Update(ctx, existing.InstructorID, id, patch)
}

func (s *Service) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	existing, err := s.repo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if !authz.PolicyFor(actor.Role).CanAccess(actor.ID, existing.InstructorID, authz.ActionDelete) {
		return authz.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// Availability returns the occupied intervals of an instructor's calendar
// day, in the service's reference timezone, ordered by start time. A day with
// nothing booked yields an empty slice.
func (s *Service) Availability(ctx context.Context, instructorID, date string) ([]domain.TimeSpan, error) {
	if strings.TrimSpace(instructorID) == "" {
		return nil, validationError("instructor_id is required")
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), s.tz)
	if err != nil {
		return nil, validationError("date must be a calendar date (YYYY-MM-DD)")
	}

	from, to := domain.DayBounds(day, s.tz)
	rows, err := s.repo.ListScheduledBetween(ctx, instructorID, from, to)
	if err != nil {
		return nil, err
	}
	return domain.OccupiedSpans(rows), nil
}

// Stats aggregates appointment counts over an optional start-time window.
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (domain.Stats, error) {
	counts, total, err := s.repo.CountByStatus(ctx, window(from, to))
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.StatsFromCounts(counts, total), nil
}

func window(from, to *time.Time) domain.TimeWindow {
	w := domain.TimeWindow{}
	if from != nil {
		f := from.UTC()
		w.From = &f
	}
	if to != nil {
		t := to.UTC()
		w.To = &t
	}
	return w
}

func effective(existing domain.Appointment, patch store.AppointmentPatch) domain.Appointment {
	if patch.StartTime != nil {
		existing.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		existing.EndTime = *patch.EndTime
	}
	if patch.Status != nil {
		existing.Status = *patch.Status
	}
	return existing
}
