package status

import "time"

// Shift timestamps are fixed-format; the service emits RFC822-style zone
// offsets but some payloads carry colons, so both layouts are accepted.
var timeLayouts = []string{
	"2006-01-02T15:04:05Z0700",
	time.RFC3339,
}

// totalSeconds aggregates the day-shift records into seconds tracked today.
//
// Reference time and zone come from the payload's now/timezone fields with
// local-clock fallbacks. Every interval is clipped to [start of day, now] and
// floored at zero; unparseable timestamps skip the record rather than fail.
func totalSeconds(root map[string]any, shifts []any) int64 {
	now := time.Now()
	if s, ok := root["now"].(string); ok {
		if t, ok := parseTime(s); ok {
			now = t
		}
	}

	loc := time.Local
	if name, ok := root["timezone"].(string); ok {
		if l, err := time.LoadLocation(name); err == nil {
			loc = l
		}
	}

	now = now.In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var total int64
	for _, item := range shifts {
		shift, ok := item.(map[string]any)
		if !ok {
			continue
		}
		total += shiftSeconds(shift, now, dayStart)
	}
	return total
}

func shiftSeconds(shift map[string]any, now, dayStart time.Time) int64 {
	start, haveStart := timeField(shift, "startedTime")
	finish, haveFinish := timeField(shift, "finishedTime")

	switch {
	case haveStart && haveFinish:
		return clippedSeconds(start, finish, now, dayStart)
	case haveStart:
		// Open shift, still counting.
		return clippedSeconds(start, now, now, dayStart)
	}

	// No top-level interval; sum the worklogings instead.
	logs, _ := shift["worklogings"].([]any)
	var total int64
	for _, item := range logs {
		wl, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if d, ok := wl["secondsDuration"].(float64); ok {
			if d > 0 {
				total += int64(d)
			}
			continue
		}
		ps, ok := timeField(wl, "projectStarted")
		if !ok {
			continue
		}
		if _, finished := timeField(wl, "projectFinished"); finished {
			continue
		}
		total += clippedSeconds(ps, now, now, dayStart)
	}
	return total
}

// clippedSeconds is max(0, min(finish, now) - max(start, dayStart)).
func clippedSeconds(start, finish, now, dayStart time.Time) int64 {
	if finish.After(now) {
		finish = now
	}
	if start.Before(dayStart) {
		start = dayStart
	}
	secs := int64(finish.Sub(start).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

func timeField(obj map[string]any, key string) (time.Time, bool) {
	s, ok := obj[key].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	return parseTime(s)
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
