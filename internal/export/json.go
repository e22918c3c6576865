package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ovrk/shiftwatch/internal/store"
)

type jsonExport struct {
	ExportedAt string    `json:"exported_at"`
	Count      int       `json:"count"`
	Days       []jsonDay `json:"days"`
}

type jsonDay struct {
	Date        string `json:"date"`
	DurationSec int64  `json:"duration_seconds"`
	Duration    string `json:"duration"`
}

func ToJSON(totals []store.DayTotal, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(totals),
	}

	for _, dt := range totals {
		export.Days = append(export.Days, jsonDay{
			Date:        dt.Day,
			DurationSec: dt.Seconds,
			Duration:    formatDuration(dt.Seconds),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
