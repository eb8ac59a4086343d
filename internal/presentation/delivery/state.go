package delivery

import (
	"sort"
	"sync"
)

// Phase is a delivery state for one render.
type Phase string

const (
	PhaseNotInjected       Phase = "not_injected"
	PhaseInjected          Phase = "injected"
	PhaseFallbackAttempted Phase = "fallback_attempted"
	PhaseLoadedDynamically Phase = "loaded_dynamically"
	PhaseDegraded          Phase = "degraded"
)

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool {
	return p == PhaseInjected || p == PhaseLoadedDynamically || p == PhaseDegraded
}

// ParsePhase resolves a phase name reported by a page.
func ParsePhase(name string) (Phase, bool) {
	switch p := Phase(name); p {
	case PhaseNotInjected, PhaseInjected, PhaseFallbackAttempted, PhaseLoadedDynamically, PhaseDegraded:
		return p, true
	}
	return "", false
}

// RenderState is the server-side delivery state of one render. It replaces
// process-wide latches: every render gets a fresh one.
type RenderState struct {
	mu             sync.Mutex
	static         bool
	missingNotice  bool
	forms          bool
	fallbackPoints map[string]bool
}

// NewRenderState creates a state in PhaseNotInjected.
func NewRenderState() *RenderState {
	return &RenderState{fallbackPoints: make(map[string]bool)}
}

// MarkStatic latches the static inclusion. It returns true only the first time.
func (s *RenderState) MarkStatic() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.static {
		return false
	}
	s.static = true
	return true
}

// MarkMissingNotice latches the missing-library console notice.
func (s *RenderState) MarkMissingNotice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missingNotice {
		return false
	}
	s.missingNotice = true
	return true
}

// MarkFallback records a fallback attempt at point. It returns true only the
// first time a given point name is seen.
func (s *RenderState) MarkFallback(point string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallbackPoints[point] {
		return false
	}
	s.fallbackPoints[point] = true
	return true
}

// MarkForms latches the form functions script.
func (s *RenderState) MarkForms() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forms {
		return false
	}
	s.forms = true
	return true
}

// Phase reports the server-side phase. The page reports the terminal
// dynamic outcomes through diagnostics.
func (s *RenderState) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.static:
		return PhaseInjected
	case len(s.fallbackPoints) > 0:
		return PhaseFallbackAttempted
	default:
		return PhaseNotInjected
	}
}

// FallbackPoints lists the points that emitted a bootstrap, sorted.
func (s *RenderState) FallbackPoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make([]string, 0, len(s.fallbackPoints))
	for p := range s.fallbackPoints {
		points = append(points, p)
	}
	sort.Strings(points)
	return points
}
