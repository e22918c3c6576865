package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ovrk/shiftwatch/internal/api"
	"github.com/ovrk/shiftwatch/internal/status"
	"github.com/ovrk/shiftwatch/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newSignedInStore(t *testing.T) *store.Store {
	t.Helper()
	s := newTestStore(t)
	s.SetCredentials("user@example.com", "hunter2")
	s.SetLoginEnabled(true)
	return s
}

// fakeService records calls and can hold them on a gate channel so tests can
// observe the engine with a request deliberately in flight.
type fakeService struct {
	mu          sync.Mutex
	report      status.Report
	statusErr   error
	clockInErr  error
	clockOutErr error

	fetches     int
	clockIns    int
	clockOuts   int
	assigns     int
	invalidates int
	lastAssign  int64

	gate chan struct{} // nil means calls return immediately
}

func (f *fakeService) FetchStatus(context.Context) (status.Report, error) {
	f.mu.Lock()
	f.fetches++
	report, err, gate := f.report, f.statusErr, f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return report, err
}

func (f *fakeService) ClockIn(context.Context) error {
	f.mu.Lock()
	f.clockIns++
	err, gate := f.clockInErr, f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeService) ClockOut(context.Context) error {
	f.mu.Lock()
	f.clockOuts++
	err, gate := f.clockOutErr, f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeService) AssignProject(_ context.Context, id int64) error {
	f.mu.Lock()
	f.assigns++
	f.lastAssign = id
	f.mu.Unlock()
	return nil
}

func (f *fakeService) Invalidate() {
	f.mu.Lock()
	f.invalidates++
	f.mu.Unlock()
}

func (f *fakeService) counts() (fetches, clockIns, clockOuts, assigns, invalidates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.clockIns, f.clockOuts, f.assigns, f.invalidates
}

func newTestEngine(t *testing.T, svc *fakeService, s *store.Store) *Engine {
	t.Helper()
	e := New(svc, s, WithPollInterval(time.Hour))
	t.Cleanup(e.Close)
	return e
}

// barrier flushes every task already posted to the engine loop.
func barrier(e *Engine) {
	e.loop.sync(func() {})
}

func engineState(e *Engine) TrackerState {
	var st TrackerState
	e.loop.sync(func() { st = e.state })
	return st
}

func engineBusy(e *Engine) bool {
	var b bool
	e.loop.sync(func() { b = e.busy })
	return b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// ============================================================
// Start
// ============================================================

func TestStartSignedOutSettlesStopped(t *testing.T) {
	svc := &fakeService{}
	e := newTestEngine(t, svc, newTestStore(t))

	e.Start()
	barrier(e)

	if st := engineState(e); st.Kind != StateStopped {
		t.Fatalf("state = %v, want Stopped", st)
	}
	if fetches, _, _, _, _ := svc.counts(); fetches != 0 {
		t.Fatalf("fetches = %d, want 0", fetches)
	}
}

func TestStartSignedInRefreshes(t *testing.T) {
	svc := &fakeService{report: status.Report{Track: status.TrackStarted, TotalSeconds: 1200}}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.Start()
	waitFor(t, "refresh to land", func() bool {
		return engineState(e).Kind == StateStarted
	})

	snap := e.Snapshot()
	if snap.TotalSeconds != 1200 {
		t.Fatalf("seconds = %d, want 1200", snap.TotalSeconds)
	}
	if !snap.SignedIn {
		t.Fatal("snapshot should report signed in")
	}
}

// ============================================================
// Toggle
// ============================================================

func TestToggleClocksIn(t *testing.T) {
	svc := &fakeService{}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.HandleToggleTap()
	waitFor(t, "clock-in", func() bool {
		_, ins, _, _, _ := svc.counts()
		return ins == 1 && !engineBusy(e)
	})

	if _, _, outs, _, _ := svc.counts(); outs != 0 {
		t.Fatalf("clock-outs = %d, want 0", outs)
	}
}

func TestToggleClocksOutWhenStarted(t *testing.T) {
	svc := &fakeService{report: status.Report{Track: status.TrackStarted}}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.Start()
	waitFor(t, "started state", func() bool {
		return engineState(e).Kind == StateStarted
	})

	e.HandleToggleTap()
	waitFor(t, "clock-out", func() bool {
		_, _, outs, _, _ := svc.counts()
		return outs == 1 && !engineBusy(e)
	})
}

func TestToggleAssignsSelectedProject(t *testing.T) {
	svc := &fakeService{}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.SelectProject(42)
	e.HandleToggleTap()
	waitFor(t, "clock-in with assignment", func() bool {
		_, ins, _, assigns, _ := svc.counts()
		return ins == 1 && assigns == 1 && !engineBusy(e)
	})

	svc.mu.Lock()
	last := svc.lastAssign
	svc.mu.Unlock()
	if last != 42 {
		t.Fatalf("assigned project = %d, want 42", last)
	}
}

func TestToggleSignedOutIsIgnored(t *testing.T) {
	svc := &fakeService{}
	e := newTestEngine(t, svc, newTestStore(t))

	e.HandleToggleTap()
	barrier(e)

	if _, ins, outs, _, _ := svc.counts(); ins != 0 || outs != 0 {
		t.Fatalf("calls = %d/%d, want none", ins, outs)
	}
	if st := engineState(e); st.Kind != StateStopped {
		t.Fatalf("state = %v, want Stopped", st)
	}
}

func TestRepeatedTapsCoalesceIntoOne(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{gate: gate}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.HandleToggleTap()
	barrier(e) // first tap holds the gate

	e.HandleToggleTap()
	e.HandleToggleTap()
	e.HandleToggleTap()
	barrier(e) // all collapse into the single pending slot

	close(gate)
	waitFor(t, "taps to settle", func() bool { return !engineBusy(e) })

	// One in flight plus exactly one replay.
	if _, ins, _, _, _ := svc.counts(); ins != 2 {
		t.Fatalf("clock-ins = %d, want 2", ins)
	}
}

func TestTapFailureClearsPending(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{gate: gate, clockInErr: errors.New("server sulking")}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.HandleToggleTap()
	barrier(e)
	e.HandleToggleTap() // queued
	barrier(e)

	close(gate)
	waitFor(t, "failure to land", func() bool {
		return engineState(e).Kind == StateError
	})

	// The queued tap must not fire against an already-failed action.
	if _, ins, _, _, _ := svc.counts(); ins != 1 {
		t.Fatalf("clock-ins = %d, want 1", ins)
	}
}

// ============================================================
// Refresh
// ============================================================

func TestRefreshCoalesces(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{gate: gate}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.RefreshStatus(true)
	barrier(e)
	e.RefreshStatus(true)
	e.RefreshStatus(true)
	e.RefreshStatus(true)
	barrier(e)

	close(gate)
	waitFor(t, "refreshes to settle", func() bool { return !engineBusy(e) })

	// One in flight plus exactly one follow-up.
	if fetches, _, _, _, _ := svc.counts(); fetches != 2 {
		t.Fatalf("fetches = %d, want 2", fetches)
	}
}

func TestSilentRefreshDroppedWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{gate: gate}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.RefreshStatus(true)
	barrier(e)
	e.RefreshStatus(false) // poll tick arriving mid-request
	barrier(e)

	close(gate)
	waitFor(t, "refresh to settle", func() bool { return !engineBusy(e) })

	if fetches, _, _, _, _ := svc.counts(); fetches != 1 {
		t.Fatalf("fetches = %d, want 1", fetches)
	}
}

func TestPendingTapSupersedesPendingRefresh(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{gate: gate}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.RefreshStatus(true)
	barrier(e)
	e.RefreshStatus(true) // pending refresh
	e.HandleToggleTap()   // pending tap wins
	barrier(e)

	close(gate)
	waitFor(t, "drain to finish", func() bool {
		_, ins, _, _, _ := svc.counts()
		return ins == 1 && !engineBusy(e)
	})

	if fetches, _, _, _, _ := svc.counts(); fetches != 1 {
		t.Fatalf("fetches = %d, want 1 (pending refresh dropped)", fetches)
	}
}

// ============================================================
// Report application
// ============================================================

func TestReportDrivesSelectionAndDayTotal(t *testing.T) {
	s := newSignedInStore(t)
	active := int64(7)
	svc := &fakeService{report: status.Report{
		Track:           status.TrackStarted,
		Projects:        []status.Project{{ID: 7, Name: "Dev"}, {ID: 8, Name: "Ops"}},
		ActiveProjectID: &active,
		TotalSeconds:    5400,
	}}
	e := newTestEngine(t, svc, s)

	e.Start()
	waitFor(t, "report to apply", func() bool {
		return engineState(e).Kind == StateStarted
	})
	barrier(e)

	snap := e.Snapshot()
	if len(snap.Projects) != 2 {
		t.Fatalf("projects = %v", snap.Projects)
	}
	if snap.SelectedProject == nil || *snap.SelectedProject != 7 {
		t.Fatalf("selected = %v, want 7", snap.SelectedProject)
	}

	// The selection is persisted, and the day total cached.
	if id, _ := s.SelectedProject(); id == nil || *id != 7 {
		t.Fatal("selection not persisted")
	}
	today := time.Now()
	totals, err := s.DayTotals(today.AddDate(0, 0, -1), today.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 1 || totals[0].Seconds != 5400 {
		t.Fatalf("day totals = %v", totals)
	}
}

func TestVanishedSelectionIsCleared(t *testing.T) {
	s := newSignedInStore(t)
	s.SetSelectedProject(99)
	svc := &fakeService{report: status.Report{
		Track:    status.TrackStopped,
		Projects: []status.Project{{ID: 7, Name: "Dev"}},
	}}
	e := newTestEngine(t, svc, s)

	e.Start()
	waitFor(t, "report to apply", func() bool {
		fetches, _, _, _, _ := svc.counts()
		return fetches == 1 && !engineBusy(e)
	})
	barrier(e)

	if snap := e.Snapshot(); snap.SelectedProject != nil {
		t.Fatalf("selected = %v, want nil", *snap.SelectedProject)
	}
	if id, _ := s.SelectedProject(); id != nil {
		t.Fatal("stale selection survived in the store")
	}
}

// ============================================================
// Failures
// ============================================================

func TestAuthFailureSuspendsEverything(t *testing.T) {
	svc := &fakeService{statusErr: &api.AuthError{Reason: errors.New("bad password")}}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.Start()
	waitFor(t, "auth failure", func() bool {
		st := engineState(e)
		return st.Kind == StateError && st.Message == "authentication failed"
	})

	if _, _, _, _, invalidates := svc.counts(); invalidates == 0 {
		t.Fatal("auth failure should invalidate the session")
	}

	// Until the user acts, refreshes are no-ops.
	e.RefreshStatus(true)
	barrier(e)
	if fetches, _, _, _, _ := svc.counts(); fetches != 1 {
		t.Fatalf("fetches = %d, want 1", fetches)
	}
}

func TestUpdateCredentialsRecoversFromAuthFailure(t *testing.T) {
	svc := &fakeService{statusErr: &api.AuthError{Reason: errors.New("bad password")}}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.Start()
	waitFor(t, "auth failure", func() bool {
		return engineState(e).Kind == StateError
	})

	svc.mu.Lock()
	svc.statusErr = nil
	svc.report = status.Report{Track: status.TrackStopped}
	svc.mu.Unlock()

	e.UpdateCredentials("user@example.com", "better password")
	waitFor(t, "recovery refresh", func() bool {
		fetches, _, _, _, _ := svc.counts()
		return fetches == 2 && engineState(e).Kind == StateStopped
	})
}

func TestTransientErrorKeepsPollingArmed(t *testing.T) {
	svc := &fakeService{statusErr: &api.StatusCodeError{Label: "status", Code: 500, Body: "oops"}}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.Start()
	waitFor(t, "error state", func() bool {
		return engineState(e).Kind == StateError
	})

	// A 500 is not an auth failure; the next refresh still goes out.
	e.RefreshStatus(true)
	waitFor(t, "retry", func() bool {
		fetches, _, _, _, _ := svc.counts()
		return fetches == 2
	})
}

func TestMissingCredentialsErrorIsAuthFailure(t *testing.T) {
	svc := &fakeService{statusErr: api.ErrCredentialsMissing}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.Start()
	waitFor(t, "auth failure", func() bool {
		st := engineState(e)
		return st.Kind == StateError && st.Message == "authentication failed"
	})
}

// ============================================================
// Sign-out and credentials
// ============================================================

func TestSignOutDiscardsInFlightResponse(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{
		gate:   gate,
		report: status.Report{Track: status.TrackStarted, TotalSeconds: 999},
	}
	e := newTestEngine(t, svc, newSignedInStore(t))

	e.Start()
	waitFor(t, "fetch in flight", func() bool {
		fetches, _, _, _, _ := svc.counts()
		return fetches == 1
	})

	e.SignOut()
	barrier(e)
	close(gate) // stale response arrives after sign-out
	time.Sleep(20 * time.Millisecond)
	barrier(e)

	snap := e.Snapshot()
	if snap.SignedIn {
		t.Fatal("should be signed out")
	}
	if snap.State.Kind != StateStopped {
		t.Fatalf("state = %v, want Stopped", snap.State)
	}
	if snap.TotalSeconds != 0 {
		t.Fatalf("stale report applied: seconds = %d", snap.TotalSeconds)
	}
}

func TestUpdateCredentialsNormalizesAndPersists(t *testing.T) {
	s := newTestStore(t)
	svc := &fakeService{}
	e := newTestEngine(t, svc, s)

	e.UpdateCredentials("  user@example.com ", `p\x61ss`)
	barrier(e)

	email, password, err := s.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	if email != "user@example.com" {
		t.Fatalf("email = %q", email)
	}
	if password != "pass" {
		t.Fatalf("password = %q", password)
	}
	if !s.LoginEnabled() {
		t.Fatal("login should be enabled after a credentials update")
	}
}

func TestUpdateCredentialsBlankStaysStopped(t *testing.T) {
	svc := &fakeService{}
	e := newTestEngine(t, svc, newTestStore(t))

	e.UpdateCredentials("", "")
	barrier(e)

	if st := engineState(e); st.Kind != StateStopped {
		t.Fatalf("state = %v, want Stopped", st)
	}
	if fetches, _, _, _, _ := svc.counts(); fetches != 0 {
		t.Fatalf("fetches = %d, want 0", fetches)
	}
}

// ============================================================
// Polling and observers
// ============================================================

func TestPollingDrivesRefreshes(t *testing.T) {
	svc := &fakeService{report: status.Report{Track: status.TrackStopped}}
	s := newSignedInStore(t)
	e := New(svc, s, WithPollInterval(5*time.Millisecond))
	t.Cleanup(e.Close)

	e.Start()
	waitFor(t, "several polls", func() bool {
		fetches, _, _, _, _ := svc.counts()
		return fetches >= 3
	})
}

func TestObserverGetsCurrentValueOnSubscribe(t *testing.T) {
	svc := &fakeService{}
	e := newTestEngine(t, svc, newTestStore(t))

	e.Start()
	barrier(e)

	got := make(chan TrackerState, 1)
	e.OnStateChange(func(st TrackerState) {
		select {
		case got <- st:
		default:
		}
	})
	barrier(e)

	select {
	case st := <-got:
		if st.Kind != StateStopped {
			t.Fatalf("state = %v, want Stopped", st)
		}
	default:
		t.Fatal("no immediate delivery on subscribe")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	svc := &fakeService{report: status.Report{Track: status.TrackStarted}}
	e := newTestEngine(t, svc, newSignedInStore(t))

	var mu sync.Mutex
	calls := 0
	sub := e.OnStateChange(func(TrackerState) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	barrier(e)
	e.Unsubscribe(sub)
	barrier(e)

	mu.Lock()
	before := calls
	mu.Unlock()

	e.Start()
	waitFor(t, "refresh", func() bool { return engineState(e).Kind == StateStarted })
	barrier(e)

	mu.Lock()
	after := calls
	mu.Unlock()
	if after != before {
		t.Fatalf("listener still firing after unsubscribe: %d -> %d", before, after)
	}
}

func TestLogReplayOnSubscribe(t *testing.T) {
	svc := &fakeService{}
	e := newTestEngine(t, svc, newTestStore(t))

	e.Start() // logs "not signed in, tracker idle"
	barrier(e)

	var mu sync.Mutex
	var lines []string
	e.OnLogLine(func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	})
	barrier(e)

	mu.Lock()
	defer mu.Unlock()
	if len(lines) == 0 {
		t.Fatal("buffered log lines should replay to a new subscriber")
	}
}

// ============================================================
// State kinds
// ============================================================

func TestTrackerStateString(t *testing.T) {
	tests := []struct {
		st   TrackerState
		want string
	}{
		{TrackerState{Kind: StateLoading}, "loading"},
		{TrackerState{Kind: StateStarted}, "started"},
		{TrackerState{Kind: StateStopped}, "stopped"},
		{TrackerState{Kind: StateError, Message: "boom"}, "error: boom"},
	}
	for _, tt := range tests {
		if got := tt.st.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
