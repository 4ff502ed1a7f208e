package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/lumikid/kidcoach-core/internal/pkg/httpx"
	"github.com/lumikid/kidcoach-core/internal/pkg/logger"
)

const (
	// DefaultCap stays below the provider's hard 15/min free-tier limit so
	// drift between our clock and theirs never trips a real 429.
	DefaultCap = 12

	DefaultWindow = time.Minute
	DefaultMargin = 250 * time.Millisecond
)

// Window is a process-wide sliding-window admission governor. One instance is
// shared by every call site; the budget is global, not per model or per work
// type. Admit blocks until a slot is free and never rejects.
type Window struct {
	log    *logger.Logger
	cap    int
	window time.Duration
	margin time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	stamps []time.Time
}

type Option func(*Window)

// WithClock substitutes the time sources. Tests use this to drive the window
// deterministically.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Window) {
		w.now = now
		w.sleep = sleep
	}
}

func WithWindow(window, margin time.Duration) Option {
	return func(w *Window) {
		w.window = window
		w.margin = margin
	}
}

func New(log *logger.Logger, cap int, opts ...Option) *Window {
	if cap <= 0 {
		cap = DefaultCap
	}
	w := &Window{
		log:    log.With("service", "ratelimit.Window"),
		cap:    cap,
		window: DefaultWindow,
		margin: DefaultMargin,
		now:    time.Now,
		sleep:  httpx.SleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Admit blocks until issuing one more request keeps the trailing window at or
// under cap, then records the admission. Check and record happen under one
// lock so overlapping admissions can neither double-count a slot nor lose
// one while another caller is suspended.
func (w *Window) Admit(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		w.mu.Lock()
		now := w.now()
		w.prune(now)
		if len(w.stamps) < w.cap {
			w.stamps = append(w.stamps, now)
			w.mu.Unlock()
			return nil
		}
		// Oldest retained timestamp leaves the window first; wait it out
		// plus a small margin.
		wait := w.stamps[0].Add(w.window).Sub(now) + w.margin
		w.mu.Unlock()

		w.log.Debug("rate window full, waiting", "wait", wait.String(), "cap", w.cap)
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
		// Re-check: another task may have taken the freed slot while we
		// slept.
	}
}

// InFlight reports how many admissions remain inside the trailing window.
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps)
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
