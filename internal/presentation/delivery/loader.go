package delivery

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNoMountTarget is returned by Document.AppendScript when the page has no
// element that can host a script yet.
var ErrNoMountTarget = errors.New("no element to mount script")

// ReadyState mirrors document.readyState.
type ReadyState string

const (
	ReadyLoading     ReadyState = "loading"
	ReadyInteractive ReadyState = "interactive"
	ReadyComplete    ReadyState = "complete"
)

// ScriptSource describes a script element to create.
type ScriptSource struct {
	ID     string
	Src    string
	Origin string
}

// Script is a script element present in the page.
type Script interface {
	Loading() bool
	SetLoading(loading bool)
	Remove()
}

// Document is the page capability the loader drives.
type Document interface {
	EntryPointAvailable() bool
	Script(id string) (Script, bool)
	// AppendScript creates the element marked loading and mounts it. onLoad
	// and onError run later, never from inside AppendScript, and may never
	// run at all in some embedding contexts.
	AppendScript(src ScriptSource, onLoad, onError func()) (Script, error)
	ReadyState() ReadyState
	OnReadyStateChange(func(ReadyState))
}

// EntryPointNotifier is implemented by documents that can announce when the
// entry point gets defined. Polling stays active as the portable fallback.
type EntryPointNotifier interface {
	OnEntryPoint(func())
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Point    string
	ScriptID string
	// Src is the library URL including its version query.
	Src    string
	Policy LoadPolicy
	Clock  Clock
	Logger *slog.Logger
}

// Loader is the page-side dynamic fallback for one insertion point. Every
// callback it receives is serialized under one mutex, like the page's single
// thread.
type Loader struct {
	doc    Document
	opts   LoaderOptions
	logger *slog.Logger

	mu         sync.Mutex
	phase      Phase
	done       chan struct{}
	created    int
	allowed    int
	retries    int
	timers     map[int]Timer
	nextTimer  int
	awaitReady bool
	awaitLoad  bool

	poll  *Retrier
	retry *Retrier
}

// NewLoader creates a loader in PhaseNotInjected.
func NewLoader(doc Document, opts LoaderOptions) *Loader {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.ScriptID == "" {
		opts.ScriptID = "tracking-manager-script"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := &Loader{
		doc:     doc,
		opts:    opts,
		logger:  logger.With("point", opts.Point),
		phase:   PhaseNotInjected,
		done:    make(chan struct{}),
		allowed: 1,
		timers:  make(map[int]Timer),
	}
	l.poll = NewRetrier(opts.Clock, opts.Policy.PollBackOff(), func(int) bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.ensureLocked()
		return l.phase.Terminal()
	})
	l.poll.OnExhausted(l.check)
	l.retry = NewRetrier(opts.Clock, opts.Policy.RetryBackOff(), func(int) bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.phase.Terminal() {
			return true
		}
		l.logger.Info("Retrying tracking library load")
		l.allowed++
		l.ensureLocked()
		return l.phase.Terminal()
	})
	l.retry.OnExhausted(l.check)
	return l
}

// Run executes the bootstrap: it stops at once when the entry point exists,
// otherwise creates the library element and arms polls and lifecycle checks.
func (l *Loader) Run() {
	l.mu.Lock()
	if l.phase != PhaseNotInjected {
		l.mu.Unlock()
		return
	}
	if l.doc.EntryPointAvailable() {
		l.logger.Debug("Tracking library already available")
		l.finishLocked(PhaseInjected)
		l.mu.Unlock()
		return
	}
	l.phase = PhaseFallbackAttempted
	l.logger.Debug("Fallback bootstrap running")

	if n, ok := l.doc.(EntryPointNotifier); ok {
		n.OnEntryPoint(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.settledLocked()
		})
	}

	if existing, ok := l.doc.Script(l.opts.ScriptID); ok && !existing.Loading() {
		l.logger.Warn("Library element present without entry point, replacing it")
		existing.Remove()
	}

	l.ensureLocked()
	l.watchLifecycleLocked()
	terminal := l.phase.Terminal()
	l.mu.Unlock()

	if !terminal {
		l.poll.Start()
	}
}

// Phase returns the current phase.
func (l *Loader) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Done is closed when the loader reaches a terminal phase.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Created returns how many library elements this loader created.
func (l *Loader) Created() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.created
}

// Stop cancels every pending timer. A loader that has not finished ends
// Degraded.
func (l *Loader) Stop() {
	l.poll.Cancel()
	l.retry.Cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimersLocked()
	if !l.phase.Terminal() {
		l.finishLocked(PhaseDegraded)
	}
}

// ensureLocked creates the library element unless the entry point exists,
// an element is mid-load, or this loader used its creation allowance.
func (l *Loader) ensureLocked() {
	if l.phase.Terminal() || l.settledLocked() {
		return
	}
	if l.created >= l.allowed {
		return
	}
	if existing, ok := l.doc.Script(l.opts.ScriptID); ok {
		if existing.Loading() {
			return
		}
		existing.Remove()
	}

	src := ScriptSource{
		ID:     l.opts.ScriptID,
		Src:    l.opts.Src + "&t=" + ulid.Make().String(),
		Origin: l.opts.Point,
	}
	l.created++
	l.logger.Debug("Loading tracking library", "src", src.Src)

	var el Script
	onLoad := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if el != nil {
			el.SetLoading(false)
		}
		if l.phase.Terminal() {
			return
		}
		l.afterLocked(l.opts.Policy.SettleDelay, l.settleLocked)
	}
	onError := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if el != nil {
			el.SetLoading(false)
		}
		l.logger.Error("Tracking library failed to load", "src", src.Src)
		l.checkLocked()
	}

	var err error
	el, err = l.doc.AppendScript(src, onLoad, onError)
	if errors.Is(err, ErrNoMountTarget) {
		l.afterLocked(l.opts.Policy.MountRetryDelay, func() {
			mounted, err := l.doc.AppendScript(src, onLoad, onError)
			if err != nil {
				l.logger.Error("Tracking library could not be mounted", "error", err.Error())
				return
			}
			el = mounted
		})
		return
	}
	if err != nil {
		l.logger.Error("Tracking library could not be mounted", "error", err.Error())
	}
}

// settleLocked runs after the load callback's settle delay.
func (l *Loader) settleLocked() {
	if l.phase.Terminal() || l.settledLocked() {
		return
	}
	l.logger.Error("Tracking library loaded but entry point is missing")
	if l.retries >= l.opts.Policy.MaxRetries {
		return
	}
	l.retries++
	// The retry policy always yields a first delay, so Start never calls
	// back into the loader here.
	l.retry.Start()
}

// settledLocked finishes LoadedDynamically when the entry point exists.
func (l *Loader) settledLocked() bool {
	if l.phase.Terminal() {
		return false
	}
	if !l.doc.EntryPointAvailable() {
		return false
	}
	l.logger.Info("Tracking library loaded dynamically")
	l.finishLocked(PhaseLoadedDynamically)
	return true
}

func (l *Loader) watchLifecycleLocked() {
	switch l.doc.ReadyState() {
	case ReadyLoading:
		l.awaitReady = true
		l.awaitLoad = true
	case ReadyInteractive:
		l.awaitLoad = true
		l.afterLocked(l.opts.Policy.LifecycleDelay, l.ensureLocked)
	default:
		l.afterLocked(l.opts.Policy.LifecycleDelay, l.ensureLocked)
	}
	if !l.awaitReady && !l.awaitLoad {
		return
	}
	l.doc.OnReadyStateChange(func(state ReadyState) {
		l.mu.Lock()
		defer l.mu.Unlock()
		switch state {
		case ReadyInteractive:
			if l.awaitReady {
				l.awaitReady = false
				l.afterLocked(l.opts.Policy.LifecycleDelay, l.ensureLocked)
			}
		case ReadyComplete:
			if l.awaitReady || l.awaitLoad {
				l.awaitReady = false
				l.awaitLoad = false
				l.afterLocked(l.opts.Policy.LifecycleDelay, l.ensureLocked)
			}
		}
	})
}

// afterLocked schedules f under the loader lock, followed by an exhaustion check.
func (l *Loader) afterLocked(d time.Duration, f func()) {
	id := l.nextTimer
	l.nextTimer++
	l.timers[id] = l.opts.Clock.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, ok := l.timers[id]; !ok {
			return
		}
		delete(l.timers, id)
		f()
		l.checkLocked()
	})
}

func (l *Loader) check() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkLocked()
}

// checkLocked ends the loader Degraded once nothing is left that could
// bring the entry point in.
func (l *Loader) checkLocked() {
	if l.phase.Terminal() || l.settledLocked() {
		return
	}
	if len(l.timers) > 0 || l.awaitReady || l.awaitLoad {
		return
	}
	if l.poll.Pending() || l.retry.Pending() {
		return
	}
	if s, ok := l.doc.Script(l.opts.ScriptID); ok && s.Loading() {
		return
	}
	l.logger.Warn("Tracking library unavailable, page continues without attribution",
		"created", l.created, "retries", l.retries)
	l.finishLocked(PhaseDegraded)
}

func (l *Loader) finishLocked(p Phase) {
	l.phase = p
	l.stopTimersLocked()
	l.poll.Cancel()
	l.retry.Cancel()
	close(l.done)
}

func (l *Loader) stopTimersLocked() {
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}
