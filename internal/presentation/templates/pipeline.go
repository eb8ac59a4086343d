// Package templates provides the host render pipeline and page layouts
package templates

import (
	"html/template"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
)

// InsertionPoint names a render-lifecycle position where hooks may emit markup.
type InsertionPoint string

const (
	PointHead               InsertionPoint = "head"
	PointEnqueueScripts     InsertionPoint = "enqueue_scripts"
	PointPrintScripts       InsertionPoint = "print_scripts"
	PointFooter             InsertionPoint = "footer"
	PointPrintFooterScripts InsertionPoint = "print_footer_scripts"
)

// Hook emits the markup for one insertion point firing. It may return "".
type Hook func(r *Render, point InsertionPoint) template.HTML

type registration struct {
	priority int
	seq      int
	name     string
	hook     Hook
}

// Pipeline holds hook registrations per insertion point. Hooks at one point
// run in ascending priority; equal priorities keep registration order.
type Pipeline struct {
	mu    sync.RWMutex
	hooks map[InsertionPoint][]registration
	seq   int
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{hooks: make(map[InsertionPoint][]registration)}
}

// Register adds hook at point with the given priority.
func (p *Pipeline) Register(point InsertionPoint, priority int, name string, hook Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	regs := append(p.hooks[point], registration{priority: priority, seq: p.seq, name: name, hook: hook})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	p.hooks[point] = regs
}

// HookNames lists the hooks registered at point in execution order.
func (p *Pipeline) HookNames(point InsertionPoint) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.hooks[point]))
	for _, r := range p.hooks[point] {
		names = append(names, r.name)
	}
	return names
}

// NewRender starts one page render against the pipeline.
func (p *Pipeline) NewRender(page attribution.Page) *Render {
	return &Render{
		ID:       ulid.Make().String(),
		Page:     page,
		pipeline: p,
		state:    make(map[string]any),
	}
}

// Render is one page render. Its state bag lives exactly as long as the
// render, so hooks keep their per-page latches here.
type Render struct {
	ID   string
	Page attribution.Page

	pipeline *Pipeline
	mu       sync.Mutex
	state    map[string]any
	fired    []InsertionPoint
}

// Fire runs every hook registered at point and returns their joined output.
// A point may be fired any number of times, including zero.
func (r *Render) Fire(point InsertionPoint) template.HTML {
	r.pipeline.mu.RLock()
	regs := append([]registration(nil), r.pipeline.hooks[point]...)
	r.pipeline.mu.RUnlock()

	r.mu.Lock()
	r.fired = append(r.fired, point)
	r.mu.Unlock()

	var b strings.Builder
	for _, reg := range regs {
		b.WriteString(string(reg.hook(r, point)))
	}
	return template.HTML(b.String())
}

// State returns the value stored under key, creating it with init on first use.
func (r *Render) State(key string, init func() any) any {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.state[key]; ok {
		return v
	}
	v := init()
	r.state[key] = v
	return v
}

// Fired returns the insertion points fired so far, in firing order.
func (r *Render) Fired() []InsertionPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]InsertionPoint(nil), r.fired...)
}
