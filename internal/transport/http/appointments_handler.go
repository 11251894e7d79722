package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"coachly/internal/authz"
	"coachly/internal/domain"
	"coachly/internal/service/appointments"
	"coachly/internal/store"
)

type appointmentsService interface {
	List(ctx context.Context, actor domain.Actor, in appointments.ListInput) (appointments.ListResult, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Appointment, error)
	Create(ctx context.Context, actor domain.Actor, in appointments.CreateInput) (domain.Appointment, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in appointments.UpdateInput) (domain.Appointment, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Availability(ctx context.Context, instructorID, date string) ([]domain.TimeSpan, error)
	Stats(ctx context.Context, from, to *time.Time) (domain.Stats, error)
}

type AppointmentsHandler struct {
	svc appointmentsService
	log *slog.Logger
}

func NewAppointmentsHandler(svc appointmentsService, log *slog.Logger) *AppointmentsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.appointments")),
	}
}

type createAppointmentRequest struct {
	InstructorID string    `json:"instructorId" binding:"required"`
	StudentID    string    `json:"studentId" binding:"required"`
	StartTime    time.Time `json:"startTime" binding:"required"`
	EndTime      time.Time `json:"endTime" binding:"required"`
	Type         string    `json:"type" binding:"required"`
	Notes        string    `json:"notes"`
	Status       string    `json:"status"`
}

type updateAppointmentRequest struct {
	StudentID *string    `json:"studentId"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Status    *string    `json:"status"`
	Type      *string    `json:"type"`
	Notes     *string    `json:"notes"`
}

func (h *AppointmentsHandler) List(c *gin.Context) {
	log := h.log.With(slog.String("op", "list"))

	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	from, ok := h.timeParam(c, "startDate")
	if !ok {
		return
	}
	to, ok := h.timeParam(c, "endDate")
	if !ok {
		return
	}

	in := appointments.ListInput{
		Status:       domain.AppointmentStatus(c.Query("status")),
		Type:         domain.AppointmentType(c.Query("type")),
		StudentID:    c.Query("studentId"),
		InstructorID: c.Query("instructorId"),
		From:         from,
		To:           to,
		Page:         intParam(c, "page"),
		PageSize:     intParam(c, "limit"),
	}

	res, err := h.svc.List(c.Request.Context(), actor, in)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}

	log.Debug("appointments listed",
		slog.String("actor_id", actor.ID),
		slog.Int("count", len(res.Appointments)),
		slog.Int("total", res.Total),
	)

	c.JSON(http.StatusOK, gin.H{
		"appointments": res.Appointments,
		"pagination": gin.H{
			"page":  res.Page,
			"limit": res.PageSize,
			"total": res.Total,
			"pages": res.Pages,
		},
	})
}

func (h *AppointmentsHandler) Get(c *gin.Context) {
	log := h.log.With(slog.String("op", "get"))

	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	appt, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentsHandler) Create(c *gin.Context) {
	log := h.log.With(slog.String("op", "create"))

	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindingError(c, log, err)
		return
	}

	appt, err := h.svc.Create(c.Request.Context(), actor, appointments.CreateInput{
		InstructorID: req.InstructorID,
		StudentID:    req.StudentID,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Type:         domain.AppointmentType(req.Type),
		Notes:        req.Notes,
		Status:       domain.AppointmentStatus(req.Status),
	})
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}

	log.Info("appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("instructor_id", appt.InstructorID),
		slog.Time("start_time", appt.StartTime),
	)

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Appointment created successfully",
		"appointment": appt,
	})
}

func (h *AppointmentsHandler) Update(c *gin.Context) {
	log := h.log.With(slog.String("op", "update"))

	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var req updateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindingError(c, log, err)
		return
	}

	in := appointments.UpdateInput{
		StudentID: req.StudentID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
	}
	if req.Status != nil {
		status := domain.AppointmentStatus(*req.Status)
		in.Status = &status
	}
	if req.Type != nil {
		typ := domain.AppointmentType(*req.Type)
		in.Type = &typ
	}

	appt, err := h.svc.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}

	log.Info("appointment updated",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("instructor_id", appt.InstructorID),
	)

	c.JSON(http.StatusOK, gin.H{
		"message":     "Appointment updated successfully",
		"appointment": appt,
	})
}

func (h *AppointmentsHandler) Delete(c *gin.Context) {
	log := h.log.With(slog.String("op", "delete"))

	actor, ok := actorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		h.writeServiceError(c, log, err)
		return
	}

	log.Info("appointment deleted", slog.String("appointment_id", id.String()))

	c.JSON(http.StatusOK, gin.H{"message": "Appointment deleted successfully"})
}

func (h *AppointmentsHandler) Availability(c *gin.Context) {
	log := h.log.With(slog.String("op", "availability"))

	if _, ok := actorFrom(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	spans, err := h.svc.Availability(c.Request.Context(), c.Param("instructorId"), c.Query("date"))
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"appointments": spans})
}

func (h *AppointmentsHandler) Stats(c *gin.Context) {
	log := h.log.With(slog.String("op", "stats"))

	if _, ok := actorFrom(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	from, ok := h.timeParam(c, "startDate")
	if !ok {
		return
	}
	to, ok := h.timeParam(c, "endDate")
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), from, to)
	if err != nil {
		h.writeServiceError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *AppointmentsHandler) idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// timeParam accepts RFC 3339 timestamps and bare calendar dates.
func (h *AppointmentsHandler) timeParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a date or RFC 3339 timestamp"})
	return nil, false
}

func intParam(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

func (h *AppointmentsHandler) writeBindingError(c *gin.Context, log *slog.Logger, err error) {
	log.Warn("invalid request payload", slog.Any("err", err))

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			if trans != nil {
				fields[fe.Field()] = fe.Translate(trans)
			} else {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

func (h *AppointmentsHandler) writeServiceError(c *gin.Context, log *slog.Logger, err error) {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, authz.ErrForbidden):
		log.Info("request forbidden")
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	case errors.Is(err, store.ErrNotFound):
		log.Info("appointment not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Appointment not found"})
	case errors.Is(err, store.ErrConflict):
		log.Info("slot conflict")
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Time slot already booked",
			"message": "The instructor already has an appointment at this time",
		})
	default:
		log.Error("request failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
