// Package services provides application-level orchestration services
package services

import (
	"time"

	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
)

// CaptureService composes URL extraction, referrer classification and the
// attribution store into one snapshot per page.
type CaptureService struct {
	ttl    time.Duration
	logger *logging.ChanneledLogger
}

// NewCaptureService creates a capture service persisting values for ttl.
func NewCaptureService(ttl time.Duration, logger *logging.ChanneledLogger) *CaptureService {
	if ttl <= 0 {
		ttl = attribution.DefaultTTL
	}
	return &CaptureService{ttl: ttl, logger: logger}
}

// CaptureSnapshot resolves every attribution key for page, persisting what
// the page contributes:
//   - query keys: the URL value wins and is written; otherwise the stored value
//   - landing_page: the stored value, else the live URL when the visit carries
//     an attribution signal (URL params or a referrer), written only when absent
//   - referrer: the live referrer, else the stored value (written only when absent)
//   - organic_source/medium: classified from the live referrer and written,
//     else the stored value
//   - current_url: always the live URL, never stored
func (s *CaptureService) CaptureSnapshot(page attribution.Page, store attribution.Store) attribution.Snapshot {
	snap := make(attribution.Snapshot)
	fromURL := attribution.Extract(page.URL)

	for _, key := range attribution.QueryKeys() {
		if v, ok := fromURL[key]; ok {
			snap[key] = v
			store.Set(key, v, s.ttl)
			continue
		}
		if v, ok := store.Get(key); ok {
			snap[key] = v
		}
	}

	if v, ok := store.Get(attribution.LandingPage); ok {
		snap[attribution.LandingPage] = v
	} else if page.URL != "" && (len(fromURL) > 0 || page.Referrer != "") {
		snap[attribution.LandingPage] = page.URL
		store.Set(attribution.LandingPage, page.URL, s.ttl)
	}

	if page.Referrer != "" {
		snap[attribution.Referrer] = page.Referrer
		if _, exists := store.Get(attribution.Referrer); !exists {
			store.Set(attribution.Referrer, page.Referrer, s.ttl)
		}
	} else if v, ok := store.Get(attribution.Referrer); ok {
		snap[attribution.Referrer] = v
	}

	if source, ok := attribution.DetectSource(page.Referrer); ok {
		snap[attribution.OrganicSource] = source
		store.Set(attribution.OrganicSource, source, s.ttl)
	} else if v, ok := store.Get(attribution.OrganicSource); ok {
		snap[attribution.OrganicSource] = v
	}

	if medium, ok := attribution.DetectMedium(page.Referrer); ok {
		snap[attribution.OrganicMedium] = string(medium)
		store.Set(attribution.OrganicMedium, string(medium), s.ttl)
	} else if v, ok := store.Get(attribution.OrganicMedium); ok {
		snap[attribution.OrganicMedium] = v
	}

	snap[attribution.CurrentURL] = page.URL

	if len(fromURL) > 0 || len(snap) > 2 {
		s.logger.Capture().Debug("Attribution captured",
			"urlParams", len(fromURL),
			"resolved", len(snap),
			"hasReferrer", page.Referrer != "")
	}

	return snap
}

// GetValue returns one key from a fresh snapshot.
func (s *CaptureService) GetValue(page attribution.Page, store attribution.Store, key attribution.Key) (string, bool) {
	return s.CaptureSnapshot(page, store).Get(key)
}

// ClearAll expires every persisted attribution record.
func (s *CaptureService) ClearAll(store attribution.Store) {
	store.Clear(attribution.PersistedKeys()...)
	s.logger.Capture().Info("Attribution records cleared")
}
