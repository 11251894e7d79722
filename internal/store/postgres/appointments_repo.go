package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"coachly/internal/domain"
	"coachly/internal/store"
)

// scheduledSlotIndex is the partial unique index on (instructor_id,
// start_time) WHERE status = 'SCHEDULED'. It is the authoritative guard
// against double-booking; the in-transaction probe is a fast path.
const scheduledSlotIndex = "appointments_scheduled_slot_idx"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

func (r *AppointmentRepo) FindMany(ctx context.Context, f store.ListFilter, skip, take int) ([]domain.Appointment, int, error) {
	rows := make([]domain.Appointment, 0, take)
	q := r.db.NewSelect().Model(&rows)
	q = applyListFilter(q, f)

	total, err := q.
		OrderExpr("start_time DESC").
		Offset(skip).
		Limit(take).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *AppointmentRepo) FindOne(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return findOne(ctx, r.db, id)
}

func (r *AppointmentRepo) ScheduledAt(ctx context.Context, instructorID string, start time.Time) ([]domain.Appointment, error) {
	return scheduledAt(ctx, r.db, instructorID, start)
}

func (r *AppointmentRepo) Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.inInstructorTransaction(ctx, appt.InstructorID, func(ctx context.Context, tx bun.Tx) error {
		taken, err := scheduledAt(ctx, tx, appt.InstructorID, appt.StartTime)
		if err != nil {
			return err
		}
		if domain.SlotTaken(appt.StartTime, appt.Status, taken, uuid.Nil) {
			return store.ErrConflict
		}

		m := appt
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			if isScheduledSlotViolation(err) {
				return store.ErrConflict
			}
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) Update(ctx context.Context, instructorID string, id uuid.UUID, patch store.AppointmentPatch) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.inInstructorTransaction(ctx, instructorID, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findOne(ctx, tx, id)
		if err != nil {
			return err
		}

		next := applyPatch(existing, patch)

		if patch.TouchesSchedule() {
			taken, err := scheduledAt(ctx, tx, next.InstructorID, next.StartTime)
			if err != nil {
				return err
			}
			if domain.SlotTaken(next.StartTime, next.Status, taken, next.ID) {
				return store.ErrConflict
			}
		}

		if _, err := tx.NewUpdate().Model(&next).WherePK().Exec(ctx); err != nil {
			if isScheduledSlotViolation(err) {
				return store.ErrConflict
			}
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepo) ListScheduledBetween(ctx context.Context, instructorID string, from, to time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("instructor_id = ?", instructorID).
		Where("status = ?", domain.StatusScheduled).
		Where("start_time >= ?", from).
		Where("start_time <= ?", to).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) CountByStatus(ctx context.Context, window domain.TimeWindow) (map[domain.AppointmentStatus]int, int, error) {
	var rows []struct {
		Status domain.AppointmentStatus `bun:"status"`
		Count  int                      `bun:"count"`
	}

	q := r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		ColumnExpr("status").
		ColumnExpr("count(*) AS count").
		GroupExpr("status")
	q = applyWindow(q, window)

	if err := q.Scan(ctx, &rows); err != nil {
		return nil, 0, err
	}

	counts := make(map[domain.AppointmentStatus]int, len(rows))
	total := 0
	for _, row := range rows {
		counts[row.Status] = row.Count
		total += row.Count
	}
	return counts, total, nil
}

// inInstructorTransaction serializes writes for one instructor's calendar by
// taking a per-instructor advisory lock for the duration of the transaction.
func (r *AppointmentRepo) inInstructorTransaction(ctx context.Context, instructorID string, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", instructorID).Exec(ctx); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func findOne(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func scheduledAt(ctx context.Context, db bun.IDB, instructorID string, start time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("instructor_id = ?", instructorID).
		Where("status = ?", domain.StatusScheduled).
		Where("start_time = ?", start).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func applyListFilter(q *bun.SelectQuery, f store.ListFilter) *bun.SelectQuery {
	if f.InstructorID != "" {
		q = q.Where("instructor_id = ?", f.InstructorID)
	}
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	return applyWindow(q, f.Window)
}

func applyWindow(q *bun.SelectQuery, w domain.TimeWindow) *bun.SelectQuery {
	if w.From != nil {
		q = q.Where("start_time >= ?", *w.From)
	}
	if w.To != nil {
		q = q.Where("start_time <= ?", *w.To)
	}
	return q
}

func isScheduledSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == scheduledSlotIndex
}

func applyPatch(appt domain.Appointment, patch store.AppointmentPatch) domain.Appointment {
	if patch.StudentID != nil {
		appt.StudentID = *patch.StudentID
	}
	if patch.StartTime != nil {
		appt.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		appt.EndTime = *patch.EndTime
	}
	if patch.Status != nil {
		appt.Status = *patch.Status
	}
	if patch.Type != nil {
		appt.Type = *patch.Type
	}
	if patch.Notes != nil {
		appt.Notes = *patch.Notes
	}
	return appt
}
