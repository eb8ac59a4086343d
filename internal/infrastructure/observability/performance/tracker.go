// Package performance provides performance tracking and monitoring capabilities
// for tracking manager operations.
package performance

import (
	"context"
	"sync"
	"time"
)

// Tracker keeps recent completed markers and per-operation aggregates
type Tracker struct {
	recent  []Marker
	stats   map[string]*OperationStats
	mu      sync.RWMutex
	started time.Time
	config  *TrackerConfig
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers      int           `json:"maxMarkers"`      // completed markers retained for inspection
	SlowThreshold   time.Duration `json:"slowThreshold"`   // operations slower than this are flagged
	CleanupInterval time.Duration `json:"cleanupInterval"` // how often old markers are pruned
	Retention       time.Duration `json:"retention"`       // how long completed markers are kept
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:      1000,
		SlowThreshold:   500 * time.Millisecond,
		CleanupInterval: 10 * time.Minute,
		Retention:       time.Hour,
	}
}

// NewTracker creates a tracker. A nil config uses DefaultTrackerConfig.
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{
		stats:   make(map[string]*OperationStats),
		started: time.Now(),
		config:  config,
	}
}

// StartOperation begins a marker; call Complete on it when the operation ends.
func (t *Tracker) StartOperation(operation string) *Marker {
	return &Marker{
		Operation: operation,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true, // assume success until proven otherwise
		tracker:   t,
	}
}

func (t *Tracker) record(m *Marker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[m.Operation]
	if !ok {
		s = &OperationStats{}
		t.stats[m.Operation] = s
	}
	s.Count++
	s.TotalTime += m.Duration
	if m.Duration > s.MaxDuration {
		s.MaxDuration = m.Duration
	}
	if !m.Success {
		s.Failures++
	}

	t.recent = append(t.recent, *m)
	if over := len(t.recent) - t.config.MaxMarkers; over > 0 {
		t.recent = append([]Marker(nil), t.recent[over:]...)
	}
}

// IsSlow reports whether a completed marker exceeded the slow threshold.
func (t *Tracker) IsSlow(m *Marker) bool {
	return m.Duration > t.config.SlowThreshold
}

// GetRecentMetrics returns completed markers that ended within the window.
func (t *Tracker) GetRecentMetrics(within time.Duration) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var out []Marker
	for _, m := range t.recent {
		if m.EndTime.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// Cleanup drops markers older than the retention window.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.config.Retention)
	kept := t.recent[:0]
	for _, m := range t.recent {
		if m.EndTime.After(cutoff) {
			kept = append(kept, m)
		}
	}
	t.recent = kept
}

// RunCleanup prunes old markers on the configured interval until ctx is done.
func (t *Tracker) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(t.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Cleanup()
		}
	}
}

// GetOverallStats returns uptime and per-operation aggregates.
func (t *Tracker) GetOverallStats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ops := make(map[string]any, len(t.stats))
	for name, s := range t.stats {
		ops[name] = map[string]any{
			"count":       s.Count,
			"failures":    s.Failures,
			"averageMs":   s.Average().Milliseconds(),
			"maxMs":       s.MaxDuration.Milliseconds(),
			"successRate": successRate(s),
		}
	}

	return map[string]any{
		"uptime":         time.Since(t.started).String(),
		"retainedMarker": len(t.recent),
		"operations":     ops,
	}
}

func successRate(s *OperationStats) float64 {
	if s.Count == 0 {
		return 1
	}
	return float64(s.Count-s.Failures) / float64(s.Count)
}
