package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"coachly/internal/domain"
	"coachly/internal/store"
)

func TestIsScheduledSlotViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			"unique violation on the slot index",
			&pgconn.PgError{Code: "23505", ConstraintName: scheduledSlotIndex},
			true,
		},
		{
			"unique violation on another constraint",
			&pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"},
			false,
		},
		{
			"other pg error",
			&pgconn.PgError{Code: "23P01", ConstraintName: scheduledSlotIndex},
			false,
		},
		{
			"wrapped pg error",
			fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: scheduledSlotIndex}),
			true,
		},
		{
			"non-pg error",
			errors.New("connection reset"),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isScheduledSlotViolation(tt.err); got != tt.want {
				t.Fatalf("isScheduledSlotViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestApplyPatch(t *testing.T) {
	base := domain.Appointment{
		InstructorID: "inst-1",
		StudentID:    "stu-1",
		StartTime:    time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
		Status:       domain.StatusScheduled,
		Type:         domain.TypeTraining,
		Notes:        "initial",
	}

	t.Run("empty patch changes nothing", func(t *testing.T) {
		got := applyPatch(base, store.AppointmentPatch{})
		if got != base {
			t.Fatalf("got = %+v, want unchanged %+v", got, base)
		}
	})

	t.Run("only supplied fields change", func(t *testing.T) {
		newStart := base.StartTime.Add(2 * time.Hour)
		status := domain.StatusCompleted
		got := applyPatch(base, store.AppointmentPatch{
			StartTime: &newStart,
			Status:    &status,
		})
		if !got.StartTime.Equal(newStart) || got.Status != domain.StatusCompleted {
			t.Fatalf("patched fields not applied: %+v", got)
		}
		if got.StudentID != base.StudentID || got.Notes != base.Notes || !got.EndTime.Equal(base.EndTime) {
			t.Fatalf("unpatched fields changed: %+v", got)
		}
	})

	t.Run("notes can be cleared explicitly", func(t *testing.T) {
		empty := ""
		got := applyPatch(base, store.AppointmentPatch{Notes: &empty})
		if got.Notes != "" {
			t.Fatalf("notes = %q, want empty", got.Notes)
		}
	})
}

func TestAppointmentPatchTouchesSchedule(t *testing.T) {
	now := time.Now()
	status := domain.StatusCancelled

	if (store.AppointmentPatch{Status: &status}).TouchesSchedule() {
		t.Fatalf("status-only patch must not touch the schedule")
	}
	if !(store.AppointmentPatch{StartTime: &now}).TouchesSchedule() {
		t.Fatalf("start change must touch the schedule")
	}
	if !(store.AppointmentPatch{EndTime: &now}).TouchesSchedule() {
		t.Fatalf("end change must touch the schedule")
	}
}
