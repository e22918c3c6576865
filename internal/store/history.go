package store

import (
	"fmt"
	"time"
)

// SetDayTotal upserts the tracked-seconds figure for one day (2006-01-02).
func (s *Store) SetDayTotal(day string, seconds int64) error {
	_, err := s.db.Exec(
		`INSERT INTO day_totals (day, seconds) VALUES (?, ?) ON CONFLICT(day) DO UPDATE SET seconds = excluded.seconds`,
		day, seconds,
	)
	if err != nil {
		return fmt.Errorf("set day total %q: %w", day, err)
	}
	return nil
}

// DayTotals returns cached totals for days in [from, to), oldest first.
func (s *Store) DayTotals(from, to time.Time) ([]DayTotal, error) {
	rows, err := s.db.Query(
		`SELECT day, seconds FROM day_totals WHERE day >= ? AND day < ? ORDER BY day`,
		from.Format("2006-01-02"), to.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("list day totals: %w", err)
	}
	defer rows.Close()

	var totals []DayTotal
	for rows.Next() {
		var dt DayTotal
		if err := rows.Scan(&dt.Day, &dt.Seconds); err != nil {
			return nil, err
		}
		totals = append(totals, dt)
	}
	return totals, rows.Err()
}
