// Package engine owns the tracker state machine: the single-flight request
// gate, pending-action coalescing, the polling timer, and listener fan-out.
// All state lives on one run-loop goroutine; network calls run on short-lived
// goroutines that post their results back, tagged with a generation counter
// so responses arriving after sign-out are discarded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ovrk/shiftwatch/internal/api"
	"github.com/ovrk/shiftwatch/internal/status"
)

// defaultPollInterval matches the service's own clock screen. Aggressive, but
// tunable via WithPollInterval.
const defaultPollInterval = time.Second

const logBufferCap = 200

// Service is the remote surface the engine drives. *api.Client implements it.
type Service interface {
	FetchStatus(ctx context.Context) (status.Report, error)
	ClockIn(ctx context.Context) error
	ClockOut(ctx context.Context) error
	AssignProject(ctx context.Context, projectID int64) error
	Invalidate()
}

// Store is the slice of persistent storage the engine reads and writes.
// *store.Store implements it.
type Store interface {
	Credentials() (email, password string, err error)
	SetCredentials(email, password string) error
	LoginEnabled() bool
	SetLoginEnabled(enabled bool) error
	SelectedProject() (*int64, error)
	SetSelectedProject(id int64) error
	ClearSelectedProject() error
	SetDayTotal(day string, seconds int64) error
}

type Engine struct {
	svc      Service
	store    Store
	loop     *loop
	obs      *observers
	interval time.Duration

	// Everything below is touched only on the loop.
	state        TrackerState
	lastStable   StateKind // StateStarted or StateStopped, survives excursions
	projects     []status.Project
	selected     *int64
	totalSeconds int64
	loginEnabled bool
	logBuf       []string

	busy           bool // single-flight gate: at most one network call in flight
	tapInFlight    bool
	pendingTap     bool
	pendingRefresh bool
	authFailure    bool
	generation     uint64

	pollStop chan struct{}
}

type Option func(*Engine)

// WithPollInterval overrides the 1-second polling period.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

func New(svc Service, st Store, opts ...Option) *Engine {
	e := &Engine{
		svc:        svc,
		store:      st,
		loop:       newLoop(),
		obs:        newObservers(),
		interval:   defaultPollInterval,
		state:      TrackerState{Kind: StateLoading},
		lastStable: StateStopped,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.loginEnabled = st.LoginEnabled()
	e.selected, _ = st.SelectedProject()
	return e
}

// Start begins polling and issues an immediate status refresh. With no usable
// sign-in it settles into Stopped instead.
func (e *Engine) Start() {
	e.loop.post(func() {
		if !e.signedIn() {
			e.logf("not signed in, tracker idle")
			e.settleStopped()
			return
		}
		e.startPolling()
		e.refreshLocked(true)
	})
}

// Close tears down polling and the run loop. In-flight requests are left to
// finish on their own; their results are dropped.
func (e *Engine) Close() {
	e.loop.sync(func() { e.stopPolling() })
	e.loop.stop()
}

// HandleToggleTap is the start/stop toggle. While a request is in flight the
// tap is queued (one slot, never more) and replayed when the gate frees up.
func (e *Engine) HandleToggleTap() {
	e.loop.post(e.toggleLocked)
}

// RefreshStatus fetches and applies remote status. Silent refreshes that find
// the gate busy are skipped; loading refreshes coalesce into one pending slot.
func (e *Engine) RefreshStatus(showLoading bool) {
	e.loop.post(func() { e.refreshLocked(showLoading) })
}

// UpdateCredentials replaces the stored credentials, invalidates the session,
// re-enables login and restarts polling with an immediate loading refresh.
func (e *Engine) UpdateCredentials(email, password string) {
	e.loop.post(func() {
		creds := api.NewCredentials(email, password)
		if err := e.store.SetCredentials(creds.Email, creds.Password); err != nil {
			e.logf("persist credentials: %v", err)
		}
		e.svc.Invalidate()
		e.authFailure = false
		e.loginEnabled = true
		e.store.SetLoginEnabled(true)
		e.notifyAuth()
		e.logf("credentials updated for %s", creds.Email)
		if !creds.Valid() {
			e.settleStopped()
			return
		}
		e.startPolling()
		e.refreshLocked(true)
	})
}

// SignOut invalidates any in-flight response, purges tokens, stops polling
// and forces Stopped.
func (e *Engine) SignOut() {
	e.loop.post(func() {
		e.generation++
		e.busy = false
		e.tapInFlight = false
		e.pendingTap = false
		e.pendingRefresh = false
		e.loginEnabled = false
		e.store.SetLoginEnabled(false)
		e.svc.Invalidate()
		e.stopPolling()
		e.settleStopped()
		e.notifyAuth()
		e.logf("signed out")
	})
}

// SelectProject persists the project the next clock-in gets assigned to.
func (e *Engine) SelectProject(id int64) {
	e.loop.post(func() {
		e.selected = &id
		if err := e.store.SetSelectedProject(id); err != nil {
			e.logf("persist project selection: %v", err)
			return
		}
		e.logf("project %d selected", id)
	})
}

// ClearProjectSelection drops the persisted project choice.
func (e *Engine) ClearProjectSelection() {
	e.loop.post(func() {
		e.selected = nil
		e.store.ClearSelectedProject()
		e.logf("project selection cleared")
	})
}

// Snapshot returns a consistent copy of the engine's observable state.
type Snapshot struct {
	State           TrackerState
	Projects        []status.Project
	SelectedProject *int64
	TotalSeconds    int64
	SignedIn        bool
}

func (e *Engine) Snapshot() Snapshot {
	var snap Snapshot
	e.loop.sync(func() {
		snap = Snapshot{
			State:           e.state,
			Projects:        append([]status.Project(nil), e.projects...),
			SelectedProject: e.selected,
			TotalSeconds:    e.totalSeconds,
			SignedIn:        e.loginEnabled,
		}
	})
	return snap
}

// --- loop-side internals ---

func (e *Engine) signedIn() bool {
	if !e.loginEnabled {
		return false
	}
	email, password, err := e.store.Credentials()
	if err != nil {
		return false
	}
	return api.NewCredentials(email, password).Valid()
}

func (e *Engine) toggleLocked() {
	if !e.signedIn() {
		e.logf("toggle ignored: signed out or no credentials")
		e.settleStopped()
		return
	}
	if e.busy {
		e.pendingTap = true
		return
	}
	e.busy = true
	e.tapInFlight = true
	e.setState(TrackerState{Kind: StateLoading})

	gen := e.generation
	stopping := e.lastStable == StateStarted
	selected := e.selected

	go func() {
		ctx := context.Background()
		var err error
		if stopping {
			err = e.svc.ClockOut(ctx)
		} else {
			err = e.svc.ClockIn(ctx)
			if err == nil && selected != nil {
				err = e.svc.AssignProject(ctx, *selected)
			}
		}
		e.loop.post(func() { e.finishTap(gen, stopping, err) })
	}()
}

func (e *Engine) finishTap(gen uint64, stopping bool, err error) {
	if gen != e.generation {
		return // signed out while the request was in flight
	}
	e.busy = false
	e.tapInFlight = false
	if err != nil {
		e.pendingTap = false
		e.pendingRefresh = false
		e.fail(err)
		return
	}
	if stopping {
		e.logf("clock-out accepted")
	} else {
		e.logf("clock-in accepted")
	}
	e.drainPending()
}

func (e *Engine) refreshLocked(showLoading bool) {
	if e.authFailure || !e.signedIn() {
		return
	}
	if e.tapInFlight {
		return // toggle wins, refresh dropped
	}
	if e.busy {
		if showLoading {
			e.pendingRefresh = true
		}
		return
	}
	e.busy = true
	if showLoading {
		e.setState(TrackerState{Kind: StateLoading})
	}

	gen := e.generation
	go func() {
		report, err := e.svc.FetchStatus(context.Background())
		e.loop.post(func() { e.finishRefresh(gen, report, err) })
	}()
}

func (e *Engine) finishRefresh(gen uint64, report status.Report, err error) {
	if gen != e.generation {
		return
	}
	e.busy = false
	if err != nil {
		e.pendingTap = false
		e.pendingRefresh = false
		e.fail(err)
		return
	}
	e.applyReport(report)
	e.drainPending()
}

// drainPending runs the coalesced follow-up action: a queued tap supersedes a
// queued refresh.
func (e *Engine) drainPending() {
	if e.pendingTap {
		e.pendingTap = false
		e.pendingRefresh = false
		e.toggleLocked()
		return
	}
	if e.pendingRefresh {
		e.pendingRefresh = false
		e.refreshLocked(false)
	}
}

func (e *Engine) applyReport(report status.Report) {
	kind := StateStopped
	if report.Track == status.TrackStarted {
		kind = StateStarted
	}
	e.lastStable = kind
	e.setState(TrackerState{Kind: kind})

	if !projectsEqual(e.projects, report.Projects) {
		e.projects = report.Projects
		e.notifyProjects()
	}

	// Selection follows the active shift; a selection that vanished from the
	// project list is cleared.
	if report.ActiveProjectID != nil {
		if e.selected == nil || *e.selected != *report.ActiveProjectID {
			id := *report.ActiveProjectID
			e.selected = &id
			e.store.SetSelectedProject(id)
		}
	}
	if e.selected != nil && !projectListed(report.Projects, *e.selected) {
		e.selected = nil
		e.store.ClearSelectedProject()
	}

	if report.TotalSeconds != e.totalSeconds {
		e.totalSeconds = report.TotalSeconds
		e.notifySeconds()
	}
	e.store.SetDayTotal(time.Now().Format("2006-01-02"), report.TotalSeconds)
}

// fail converts an error into the Error state plus a log line. Auth failures
// additionally purge tokens and suspend polling until the user acts.
func (e *Engine) fail(err error) {
	var authErr *api.AuthError
	if errors.As(err, &authErr) || errors.Is(err, api.ErrCredentialsMissing) {
		e.authFailure = true
		e.svc.Invalidate()
		e.stopPolling()
		e.setState(TrackerState{Kind: StateError, Message: "authentication failed"})
		e.logf("%v; polling suspended", err)
		return
	}

	e.setState(TrackerState{Kind: StateError, Message: err.Error()})

	var scErr *api.StatusCodeError
	var pErr *status.ParseError
	switch {
	case errors.As(err, &scErr):
		e.logf("%v: %s", err, truncate(scErr.Body, 300))
	case errors.As(err, &pErr):
		e.logf("%v: %s", err, truncate(pErr.Raw, 300))
	default:
		e.logf("%v", err)
	}
}

func (e *Engine) settleStopped() {
	e.lastStable = StateStopped
	e.setState(TrackerState{Kind: StateStopped})
}

func (e *Engine) setState(s TrackerState) {
	if e.state == s {
		return
	}
	e.state = s
	e.notifyState()
}

func (e *Engine) startPolling() {
	if e.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	e.pollStop = stop
	go func() {
		t := time.NewTicker(e.interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				e.loop.post(func() { e.refreshLocked(false) })
			}
		}
	}()
}

func (e *Engine) stopPolling() {
	if e.pollStop != nil {
		close(e.pollStop)
		e.pollStop = nil
	}
}

func (e *Engine) logf(format string, args ...any) {
	line := time.Now().Format("15:04:05") + " " + fmt.Sprintf(format, args...)
	e.logBuf = append(e.logBuf, line)
	if len(e.logBuf) > logBufferCap {
		e.logBuf = e.logBuf[len(e.logBuf)-logBufferCap:]
	}
	for _, fn := range e.obs.log {
		fn(line)
	}
}

func projectsEqual(a, b []status.Project) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func projectListed(projects []status.Project, id int64) bool {
	for _, p := range projects {
		if p.ID == id {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
