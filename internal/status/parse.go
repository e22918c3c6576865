// Package status decodes the service's clock-screen payload: tracking state,
// project list, the project attached to the open shift, and the total number
// of seconds tracked today.
package status

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Track is the tracking state reported by the service.
type Track int

const (
	TrackStopped Track = iota
	TrackStarted
)

func (t Track) String() string {
	if t == TrackStarted {
		return "STARTED"
	}
	return "STOPPED"
}

type Project struct {
	ID   int64
	Name string
}

// Report is everything the engine needs from one status response.
type Report struct {
	Track           Track
	Projects        []Project
	ActiveProjectID *int64 // project of the open shift, if any
	TotalSeconds    int64
}

// ParseError means no tracking state could be recognized anywhere in the
// payload. The raw body is kept for the diagnostic log.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized status payload (%d bytes)", len(e.Raw))
}

// Parse decodes a status response body. The tracking state is mandatory;
// everything else degrades gracefully.
func Parse(raw []byte) (Report, error) {
	var doc any
	json.Unmarshal(raw, &doc) // a non-JSON body can still match the substring fallback

	track, ok := findTrack(doc, raw)
	if !ok {
		return Report{}, &ParseError{Raw: string(raw)}
	}

	root, _ := doc.(map[string]any)
	shifts, _ := root["dayShifts"].([]any)

	return Report{
		Track:           track,
		Projects:        parseProjects(root["activeProjects"]),
		ActiveProjectID: activeProjectID(shifts),
		TotalSeconds:    totalSeconds(root, shifts),
	}, nil
}

// findTrack looks for a structured state value first and falls back to a raw
// substring search over the body text.
func findTrack(doc any, raw []byte) (Track, bool) {
	if s, ok := findStateString(doc); ok {
		switch strings.ToUpper(s) {
		case "STARTED":
			return TrackStarted, true
		case "STOPPED":
			return TrackStopped, true
		}
	}
	body := string(raw)
	if strings.Contains(body, "STARTED") {
		return TrackStarted, true
	}
	if strings.Contains(body, "STOPPED") {
		return TrackStopped, true
	}
	return TrackStopped, false
}

var stateKeys = []string{"currentState", "state"}

// findStateString walks the decoded JSON tree depth-first and returns the
// first string value stored under a state key. At each object the state keys
// are checked before descending; children are visited in sorted key order so
// the walk is deterministic.
func findStateString(v any) (string, bool) {
	switch v := v.(type) {
	case map[string]any:
		for _, k := range stateKeys {
			if s, ok := v[k].(string); ok {
				return s, true
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := findStateString(v[k]); ok {
				return s, true
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := findStateString(item); ok {
				return s, true
			}
		}
	}
	return "", false
}

// parseProjects reads the top-level activeProjects array, de-duplicated by id
// in first-seen order.
func parseProjects(v any) []Project {
	items, _ := v.([]any)
	seen := make(map[int64]bool)
	var projects []Project
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, ok := numberField(obj, "id")
		if !ok {
			continue
		}
		name, ok := obj["name"].(string)
		if !ok {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		projects = append(projects, Project{ID: id, Name: name})
	}
	return projects
}

// activeProjectID finds the open shift (no finishedTime) and reads its first
// workloging's projectId.
func activeProjectID(shifts []any) *int64 {
	for _, item := range shifts {
		shift, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := shift["finishedTime"].(string); ok && s != "" {
			continue
		}
		logs, _ := shift["worklogings"].([]any)
		if len(logs) == 0 {
			return nil
		}
		first, ok := logs[0].(map[string]any)
		if !ok {
			return nil
		}
		if id, ok := numberField(first, "projectId"); ok {
			return &id
		}
		return nil
	}
	return nil
}

func numberField(obj map[string]any, key string) (int64, bool) {
	n, ok := obj[key].(float64)
	if !ok {
		return 0, false
	}
	return int64(n), true
}
