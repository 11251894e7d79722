package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type AppointmentType string

const (
	TypeTraining     AppointmentType = "TRAINING"
	TypeAssessment   AppointmentType = "ASSESSMENT"
	TypeConsultation AppointmentType = "CONSULTATION"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case TypeTraining, TypeAssessment, TypeConsultation:
		return true
	}
	return false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID           uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	InstructorID string            `bun:"instructor_id,notnull" json:"instructorId"`
	StudentID    string            `bun:"student_id,notnull" json:"studentId"`
	StartTime    time.Time         `bun:"start_time,notnull" json:"startTime"`
	EndTime      time.Time         `bun:"end_time,notnull" json:"endTime"`
	Status       AppointmentStatus `bun:"status,notnull" json:"status"`
	Type         AppointmentType   `bun:"type,notnull" json:"type"`
	Notes        string            `bun:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time         `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt    time.Time         `bun:"updated_at,notnull" json:"updatedAt"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
