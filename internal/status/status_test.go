package status

import (
	"errors"
	"testing"
)

// ============================================================
// State detection
// ============================================================

func TestParseTopLevelState(t *testing.T) {
	report, err := Parse([]byte(`{"currentState":"STARTED"}`))
	if err != nil {
		t.Fatal(err)
	}
	if report.Track != TrackStarted {
		t.Fatalf("track = %v, want STARTED", report.Track)
	}

	report, err = Parse([]byte(`{"currentState":"stopped"}`))
	if err != nil {
		t.Fatal(err)
	}
	if report.Track != TrackStopped {
		t.Fatalf("track = %v, want STOPPED", report.Track)
	}
}

func TestParseNestedState(t *testing.T) {
	raw := `{"data":{"clockScreen":{"state":"Started"}}}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.Track != TrackStarted {
		t.Fatalf("track = %v, want STARTED", report.Track)
	}
}

func TestParseStateInsideArray(t *testing.T) {
	raw := `{"screens":[{"name":"other"},{"currentState":"STOPPED"}]}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.Track != TrackStopped {
		t.Fatalf("track = %v, want STOPPED", report.Track)
	}
}

func TestParsePriorityKeyWinsOverDescent(t *testing.T) {
	// currentState at a node beats any state buried deeper.
	raw := `{"aaa":{"state":"STOPPED"},"currentState":"STARTED"}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.Track != TrackStarted {
		t.Fatalf("track = %v, want STARTED", report.Track)
	}
}

func TestParseSubstringFallback(t *testing.T) {
	// Not even JSON, but the marker is in the body.
	report, err := Parse([]byte(`<html>shift STARTED ok</html>`))
	if err != nil {
		t.Fatal(err)
	}
	if report.Track != TrackStarted {
		t.Fatalf("track = %v, want STARTED", report.Track)
	}
}

func TestParseNoStateIsParseError(t *testing.T) {
	_, err := Parse([]byte(`{"foo":"bar"}`))
	var pErr *ParseError
	if !errors.As(err, &pErr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if pErr.Raw != `{"foo":"bar"}` {
		t.Fatalf("raw = %q", pErr.Raw)
	}
}

// ============================================================
// Projects
// ============================================================

func TestParseProjects(t *testing.T) {
	raw := `{
		"currentState": "STOPPED",
		"activeProjects": [
			{"id": 1, "name": "Dev"},
			{"id": 2, "name": "Ops"},
			{"id": 1, "name": "Dev duplicate"},
			{"name": "no id"},
			{"id": 3}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Projects) != 2 {
		t.Fatalf("projects = %v, want 2 entries", report.Projects)
	}
	if report.Projects[0] != (Project{ID: 1, Name: "Dev"}) {
		t.Fatalf("projects[0] = %v", report.Projects[0])
	}
	if report.Projects[1] != (Project{ID: 2, Name: "Ops"}) {
		t.Fatalf("projects[1] = %v", report.Projects[1])
	}
}

func TestActiveProjectFromOpenShift(t *testing.T) {
	raw := `{
		"currentState": "STARTED",
		"dayShifts": [
			{"startedTime": "2026-03-01T08:00:00+0000", "finishedTime": "2026-03-01T09:00:00+0000"},
			{"startedTime": "2026-03-01T09:30:00+0000", "worklogings": [{"projectId": 7}]}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.ActiveProjectID == nil || *report.ActiveProjectID != 7 {
		t.Fatalf("active project = %v, want 7", report.ActiveProjectID)
	}
}

func TestNoActiveProjectWhenAllShiftsClosed(t *testing.T) {
	raw := `{
		"currentState": "STOPPED",
		"dayShifts": [
			{"startedTime": "2026-03-01T08:00:00+0000", "finishedTime": "2026-03-01T09:00:00+0000", "worklogings": [{"projectId": 7}]}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.ActiveProjectID != nil {
		t.Fatalf("active project = %v, want nil", *report.ActiveProjectID)
	}
}

// ============================================================
// Seconds aggregation
// ============================================================

func TestTotalSecondsClosedShift(t *testing.T) {
	raw := `{
		"currentState": "STOPPED",
		"now": "2026-03-01T10:00:00+0000",
		"timezone": "UTC",
		"dayShifts": [
			{"startedTime": "2026-03-01T09:00:00+0000", "finishedTime": "2026-03-01T09:30:00+0000"}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalSeconds != 1800 {
		t.Fatalf("total = %d, want 1800", report.TotalSeconds)
	}
}

func TestTotalSecondsOpenShiftCountsToNow(t *testing.T) {
	raw := `{
		"currentState": "STARTED",
		"now": "2026-03-01T09:45:00+0000",
		"timezone": "UTC",
		"dayShifts": [
			{"startedTime": "2026-03-01T09:00:00+0000"}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalSeconds != 2700 {
		t.Fatalf("total = %d, want 2700", report.TotalSeconds)
	}
}

func TestTotalSecondsClipsToDayStart(t *testing.T) {
	// An overnight shift only counts from midnight.
	raw := `{
		"currentState": "STOPPED",
		"now": "2026-03-01T08:00:00+0000",
		"timezone": "UTC",
		"dayShifts": [
			{"startedTime": "2026-02-28T22:00:00+0000", "finishedTime": "2026-03-01T01:00:00+0000"}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalSeconds != 3600 {
		t.Fatalf("total = %d, want 3600", report.TotalSeconds)
	}
}

func TestTotalSecondsClipsFinishToNow(t *testing.T) {
	raw := `{
		"currentState": "STOPPED",
		"now": "2026-03-01T09:15:00+0000",
		"timezone": "UTC",
		"dayShifts": [
			{"startedTime": "2026-03-01T09:00:00+0000", "finishedTime": "2026-03-01T11:00:00+0000"}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalSeconds != 900 {
		t.Fatalf("total = %d, want 900", report.TotalSeconds)
	}
}

func TestTotalSecondsNeverNegative(t *testing.T) {
	raw := `{
		"currentState": "STOPPED",
		"now": "2026-03-01T10:00:00+0000",
		"timezone": "UTC",
		"dayShifts": [
			{"startedTime": "2026-03-01T11:00:00+0000", "finishedTime": "2026-03-01T10:30:00+0000"}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalSeconds != 0 {
		t.Fatalf("total = %d, want 0", report.TotalSeconds)
	}
}

func TestTotalSecondsWorklogingsFallback(t *testing.T) {
	raw := `{
		"currentState": "STARTED",
		"now": "2026-03-01T10:00:00+0000",
		"timezone": "UTC",
		"dayShifts": [
			{"worklogings": [
				{"secondsDuration": 600},
				{"secondsDuration": -5},
				{"projectStarted": "2026-03-01T09:50:00+0000"},
				{"projectStarted": "2026-03-01T08:00:00+0000", "projectFinished": "2026-03-01T08:30:00+0000"}
			]}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	// 600 recorded + 600 from the still-open workloging; the finished one
	// without a duration contributes nothing.
	if report.TotalSeconds != 1200 {
		t.Fatalf("total = %d, want 1200", report.TotalSeconds)
	}
}

func TestTotalSecondsSkipsBadTimestamps(t *testing.T) {
	raw := `{
		"currentState": "STOPPED",
		"now": "2026-03-01T10:00:00+0000",
		"timezone": "UTC",
		"dayShifts": [
			{"startedTime": "garbage", "finishedTime": "2026-03-01T09:30:00+0000"},
			{"startedTime": "2026-03-01T09:00:00+0000", "finishedTime": "2026-03-01T09:10:00+0000"}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalSeconds != 600 {
		t.Fatalf("total = %d, want 600", report.TotalSeconds)
	}
}

func TestTotalSecondsMultipleShifts(t *testing.T) {
	raw := `{
		"currentState": "STARTED",
		"now": "2026-03-01T12:00:00+0000",
		"timezone": "UTC",
		"dayShifts": [
			{"startedTime": "2026-03-01T08:00:00+0000", "finishedTime": "2026-03-01T09:00:00+0000"},
			{"startedTime": "2026-03-01T10:00:00+0000", "finishedTime": "2026-03-01T10:30:00+0000"},
			{"startedTime": "2026-03-01T11:30:00+0000"}
		]
	}`
	report, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalSeconds != 3600+1800+1800 {
		t.Fatalf("total = %d, want 7200", report.TotalSeconds)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	for _, s := range []string{
		"2026-03-01T09:00:00+0000",
		"2026-03-01T09:00:00+03:00",
		"2026-03-01T09:00:00Z",
	} {
		if _, ok := parseTime(s); !ok {
			t.Errorf("parseTime(%q) failed", s)
		}
	}
	if _, ok := parseTime("01.03.2026 09:00"); ok {
		t.Error("parseTime should reject unknown layouts")
	}
}

// ============================================================
// Misc
// ============================================================

func TestTrackString(t *testing.T) {
	if TrackStarted.String() != "STARTED" || TrackStopped.String() != "STOPPED" {
		t.Fatal("unexpected Track strings")
	}
}
