package delivery

import (
	"sync"
	"time"
)

// manualClock fires callbacks only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d, running due callbacks in order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

func (c *manualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending counts timers that have not fired or been stopped.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type loadOutcome int

const (
	outcomeDefines loadOutcome = iota
	outcomeLoadsEmpty
	outcomeFails
	outcomeHangs
)

type fakeScript struct {
	doc     *fakeDocument
	src     ScriptSource
	loading bool
}

func (s *fakeScript) Loading() bool {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	return s.loading
}

func (s *fakeScript) SetLoading(loading bool) {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	s.loading = loading
}

func (s *fakeScript) Remove() {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	if s.doc.scripts[s.src.ID] == s {
		delete(s.doc.scripts, s.src.ID)
	}
}

// fakeDocument is a page whose library load outcome is scripted.
type fakeDocument struct {
	mu        sync.Mutex
	clock     Clock
	outcome   loadOutcome
	loadDelay time.Duration
	noMount   int
	entry     bool
	ready     ReadyState
	scripts   map[string]*fakeScript
	created   []ScriptSource
	readyFns  []func(ReadyState)
	entryFns  []func()
}

func newFakeDocument(clock Clock, outcome loadOutcome) *fakeDocument {
	return &fakeDocument{
		clock:     clock,
		outcome:   outcome,
		loadDelay: 10 * time.Millisecond,
		ready:     ReadyComplete,
		scripts:   make(map[string]*fakeScript),
	}
}

func (d *fakeDocument) EntryPointAvailable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entry
}

func (d *fakeDocument) Script(id string) (Script, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.scripts[id]
	if !ok {
		return nil, false
	}
	return s, true
}

func (d *fakeDocument) AppendScript(src ScriptSource, onLoad, onError func()) (Script, error) {
	d.mu.Lock()
	if d.noMount > 0 {
		d.noMount--
		d.mu.Unlock()
		return nil, ErrNoMountTarget
	}
	s := &fakeScript{doc: d, src: src, loading: true}
	d.scripts[src.ID] = s
	d.created = append(d.created, src)
	outcome, delay := d.outcome, d.loadDelay
	d.mu.Unlock()

	switch outcome {
	case outcomeDefines:
		d.clock.AfterFunc(delay, func() {
			d.defineEntry()
			onLoad()
		})
	case outcomeLoadsEmpty:
		d.clock.AfterFunc(delay, onLoad)
	case outcomeFails:
		d.clock.AfterFunc(delay, onError)
	}
	return s, nil
}

func (d *fakeDocument) ReadyState() ReadyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

func (d *fakeDocument) OnReadyStateChange(f func(ReadyState)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readyFns = append(d.readyFns, f)
}

func (d *fakeDocument) OnEntryPoint(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entryFns = append(d.entryFns, f)
}

func (d *fakeDocument) defineEntry() {
	d.mu.Lock()
	d.entry = true
	fns := append([]func(){}, d.entryFns...)
	d.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func (d *fakeDocument) setReady(state ReadyState) {
	d.mu.Lock()
	d.ready = state
	fns := append([]func(ReadyState){}, d.readyFns...)
	d.mu.Unlock()
	for _, f := range fns {
		f(state)
	}
}

// seedLoading mounts a library element that is still loading.
func (d *fakeDocument) seedLoading(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[id] = &fakeScript{doc: d, src: ScriptSource{ID: id, Origin: "static"}, loading: true}
}

func (d *fakeDocument) createdBy(origin string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.created {
		if s.Origin == origin {
			n++
		}
	}
	return n
}

func (d *fakeDocument) totalCreated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.created)
}

// pollingDocument hides the entry point notification so only polls observe it.
type pollingDocument struct {
	d *fakeDocument
}

func (p pollingDocument) EntryPointAvailable() bool       { return p.d.EntryPointAvailable() }
func (p pollingDocument) Script(id string) (Script, bool) { return p.d.Script(id) }
func (p pollingDocument) ReadyState() ReadyState          { return p.d.ReadyState() }
func (p pollingDocument) OnReadyStateChange(f func(ReadyState)) {
	p.d.OnReadyStateChange(f)
}
func (p pollingDocument) AppendScript(src ScriptSource, onLoad, onError func()) (Script, error) {
	return p.d.AppendScript(src, onLoad, onError)
}
