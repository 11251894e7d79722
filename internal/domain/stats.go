package domain

// Stats summarizes appointments over an optional time window.
type Stats struct {
	Total          int     `json:"total"`
	Scheduled      int     `json:"scheduled"`
	Completed      int     `json:"completed"`
	Cancelled      int     `json:"cancelled"`
	NoShow         int     `json:"noShow"`
	AttendanceRate float64 `json:"attendanceRate"`
}

// StatsFromCounts builds a Stats from per-status counts and the total over
// the same filtered set. The attendance rate is completed/total as a
// percentage; an empty set yields 0, never NaN.
func StatsFromCounts(counts map[AppointmentStatus]int, total int) Stats {
	s := Stats{
		Total:     total,
		Scheduled: counts[StatusScheduled],
		Completed: counts[StatusCompleted],
		Cancelled: counts[StatusCancelled],
		NoShow:    counts[StatusNoShow],
	}
	if total > 0 {
		s.AttendanceRate = float64(s.Completed) / float64(total) * 100
	}
	return s
}

// AggregateStats computes Stats directly from an appointment set. The window
// filter on start time is half-open on whichever bounds are nil.
func AggregateStats(appts []Appointment, window TimeWindow) Stats {
	counts := make(map[AppointmentStatus]int)
	total := 0
	for _, a := range appts {
		if !window.Contains(a.StartTime) {
			continue
		}
		total++
		counts[a.Status]++
	}
	return StatsFromCounts(counts, total)
}
