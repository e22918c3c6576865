package export

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/ovrk/shiftwatch/internal/store"
)

func ToCSV(totals []store.DayTotal, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	// Header
	if err := w.Write([]string{"Date", "Seconds", "Duration"}); err != nil {
		return err
	}

	for _, dt := range totals {
		row := []string{
			dt.Day,
			fmt.Sprintf("%d", dt.Seconds),
			formatDuration(dt.Seconds),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
