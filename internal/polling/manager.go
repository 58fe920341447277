// Package polling runs the authorize-refresh-fetch-sleep loop
package polling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fastertools/atmo/internal/api"
	"github.com/fastertools/atmo/internal/auth"
	"github.com/fastertools/atmo/internal/errs"
)

const (
	// DefaultInterval is the pause between poll cycles
	DefaultInterval = 60 * time.Second
	// DefaultStep is the sleep increment at which cancellation is observed
	DefaultStep = time.Second
)

// State is the loop's position in its lifecycle
type State int

const (
	Uninitialized State = iota
	Authorizing
	Polling
	Sleeping
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Authorizing:
		return "authorizing"
	case Polling:
		return "polling"
	case Sleeping:
		return "sleeping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TokenSource obtains the first token and refreshes expired ones
type TokenSource interface {
	Login(ctx context.Context) (auth.Token, error)
	Refresh(ctx context.Context, current auth.Token) (auth.Token, error)
}

// Fetcher reads sensor data with a token
type Fetcher interface {
	GetStationsData(ctx context.Context, token auth.Token) (*api.StationsData, error)
	GetHomeCoachsData(ctx context.Context, token auth.Token) (*api.HomeCoachsData, error)
}

// Cycle is the outcome of one poll cycle. Either payload may be nil when
// its fetch failed.
type Cycle struct {
	Number        int
	StartedAt     time.Time
	Stations      *api.StationsData
	HomeCoachs    *api.HomeCoachsData
	StationsErr   error
	HomeCoachsErr error
}

// Sink receives each cycle's payloads
type Sink interface {
	Present(c Cycle) error
}

// Reporter receives progress and per-cycle failures
type Reporter interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// LogReporter reports through the standard logger
type LogReporter struct{}

func (LogReporter) Infof(format string, args ...interface{})  { log.Printf(format, args...) }
func (LogReporter) Warnf(format string, args ...interface{})  { log.Printf("warning: "+format, args...) }
func (LogReporter) Debugf(format string, args ...interface{}) {}

// Options tunes the loop
type Options struct {
	// Interval between the end of one cycle and the start of the next
	Interval time.Duration
	// Step is the sleep increment; cancellation is noticed within one step
	Step time.Duration
	// MaxCycles stops the loop after that many cycles; zero runs forever
	MaxCycles int
	// OnState, if set, is called on every state transition
	OnState func(State)
	// Now overrides the clock used for the expiry check
	Now func() time.Time
}

// Manager owns the current token and drives the poll cycles
type Manager struct {
	tokens   TokenSource
	fetcher  Fetcher
	sink     Sink
	reporter Reporter
	opts     Options

	token auth.Token
	state State
}

// NewManager creates a poll loop
func NewManager(tokens TokenSource, fetcher Fetcher, sink Sink, reporter Reporter, opts Options) *Manager {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if reporter == nil {
		reporter = LogReporter{}
	}

	return &Manager{
		tokens:   tokens,
		fetcher:  fetcher,
		sink:     sink,
		reporter: reporter,
		opts:     opts,
	}
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	return m.state
}

// Run authorizes once and polls until ctx is cancelled, returning nil.
// Authorization and refresh failures end the loop with an error; fetch
// failures are reported and the loop carries on.
func (m *Manager) Run(ctx context.Context) error {
	m.setState(Authorizing)

	tok, err := m.tokens.Login(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			m.setState(Stopped)
			return nil
		}
		return fmt.Errorf("authorization failed: %w", err)
	}
	m.token = tok
	m.reporter.Debugf("authorized, token valid until %s", tok.ExpiresAt().Format(time.RFC3339))

	for cycle := 1; ; cycle++ {
		if err := m.runCycle(ctx, cycle); err != nil {
			return err
		}

		if m.opts.MaxCycles > 0 && cycle >= m.opts.MaxCycles {
			m.setState(Stopped)
			return nil
		}

		if cancelled := m.sleep(ctx); cancelled {
			m.setState(Stopped)
			return nil
		}
	}
}

// runCycle refreshes the token if needed, then fetches and presents data
func (m *Manager) runCycle(ctx context.Context, number int) error {
	m.setState(Polling)

	// In-flight requests are not interrupted by cancellation; their own
	// timeouts bound them.
	reqCtx := context.WithoutCancel(ctx)

	cycle := Cycle{Number: number, StartedAt: m.opts.Now()}

	if m.token.ExpiredAt(cycle.StartedAt) {
		m.reporter.Debugf("access token expired at %s, refreshing", m.token.ExpiresAt().Format(time.RFC3339))
		next, err := m.tokens.Refresh(reqCtx, m.token)
		if err != nil {
			return fmt.Errorf("token refresh failed: %w", err)
		}
		m.token = next
	}

	cycle.Stations, cycle.StationsErr = m.fetcher.GetStationsData(reqCtx, m.token)
	if cycle.StationsErr != nil {
		m.reportFetchError("stations data", cycle.StationsErr)
	}

	cycle.HomeCoachs, cycle.HomeCoachsErr = m.fetcher.GetHomeCoachsData(reqCtx, m.token)
	if cycle.HomeCoachsErr != nil {
		m.reportFetchError("home coach data", cycle.HomeCoachsErr)
	}

	if cycle.Stations == nil && cycle.HomeCoachs == nil {
		return nil
	}
	if err := m.sink.Present(cycle); err != nil {
		m.reporter.Warnf("failed to present cycle %d: %v", number, err)
	}
	return nil
}

func (m *Manager) reportFetchError(what string, err error) {
	if kind := errs.KindOf(err); kind != 0 {
		m.reporter.Warnf("failed to fetch %s (%s): %v", what, kind, err)
		return
	}
	m.reporter.Warnf("failed to fetch %s: %v", what, err)
}

// sleep waits out the interval in increments and reports whether ctx was
// cancelled meanwhile
func (m *Manager) sleep(ctx context.Context) bool {
	m.setState(Sleeping)

	remaining := m.opts.Interval
	for remaining > 0 {
		step := min(m.opts.Step, remaining)

		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return true
		case <-timer.C:
		}
		remaining -= step
	}
	return ctx.Err() != nil
}

func (m *Manager) setState(s State) {
	m.state = s
	if m.opts.OnState != nil {
		m.opts.OnState(s)
	}
}
