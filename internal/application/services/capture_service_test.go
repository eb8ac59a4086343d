package services

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
)

func newCapture() *CaptureService {
	return NewCaptureService(attribution.DefaultTTL, logging.NewDiscardLogger())
}

func TestCaptureURLValuesPersistAcrossPages(t *testing.T) {
	capture := newCapture()
	store := attribution.NewMemoryStore(nil)

	first := capture.CaptureSnapshot(attribution.NewPage(
		"https://site.example/landing?utm_source=news&utm_campaign=spring%20sale&gclid=g-1", ""), store)
	assert.Equal(t, "news", first[attribution.UTMSource])
	assert.Equal(t, "spring sale", first[attribution.UTMCampaign])
	assert.Equal(t, "g-1", first[attribution.GCLID])

	second := capture.CaptureSnapshot(attribution.NewPage("https://site.example/programs", ""), store)
	assert.Equal(t, "news", second[attribution.UTMSource])
	assert.Equal(t, "spring sale", second[attribution.UTMCampaign])
	assert.Equal(t, "g-1", second[attribution.GCLID])
	assert.Equal(t, "https://site.example/programs", second[attribution.CurrentURL])
}

func TestCaptureLastExplicitTouchWins(t *testing.T) {
	capture := newCapture()
	store := attribution.NewMemoryStore(nil)

	capture.CaptureSnapshot(attribution.NewPage("https://site.example/?utm_source=a&utm_medium=cpc", ""), store)
	snap := capture.CaptureSnapshot(attribution.NewPage("https://site.example/?utm_source=b", ""), store)

	assert.Equal(t, "b", snap[attribution.UTMSource])
	assert.Equal(t, "cpc", snap[attribution.UTMMedium], "keys absent from the URL keep their stored value")
}

func TestCaptureFirstTouchLandingPageAndReferrer(t *testing.T) {
	capture := newCapture()
	store := attribution.NewMemoryStore(nil)

	capture.CaptureSnapshot(attribution.NewPage("https://site.example/a?utm_source=x", "https://www.google.com/"), store)
	snap := capture.CaptureSnapshot(attribution.NewPage("https://site.example/b?utm_source=y", "https://news.example/"), store)

	assert.Equal(t, "https://site.example/a?utm_source=x", snap[attribution.LandingPage])
	assert.Equal(t, "https://news.example/", snap[attribution.Referrer], "the live referrer is reported")

	stored, _ := store.Get(attribution.Referrer)
	assert.Equal(t, "https://www.google.com/", stored, "the first referrer stays persisted")
	landing, _ := store.Get(attribution.LandingPage)
	assert.Equal(t, "https://site.example/a?utm_source=x", landing)

	third := capture.CaptureSnapshot(attribution.NewPage("https://site.example/c", ""), store)
	assert.Equal(t, "https://www.google.com/", third[attribution.Referrer])
}

func TestCaptureOrganicRecomputedLiveWithFallback(t *testing.T) {
	capture := newCapture()
	store := attribution.NewMemoryStore(nil)

	snap := capture.CaptureSnapshot(attribution.NewPage("https://site.example/", "https://www.bing.com/search?q=x"), store)
	assert.Equal(t, "bing", snap[attribution.OrganicSource])
	assert.Equal(t, "organic", snap[attribution.OrganicMedium])

	snap = capture.CaptureSnapshot(attribution.NewPage("https://site.example/next", ""), store)
	assert.Equal(t, "bing", snap[attribution.OrganicSource])
	assert.Equal(t, "organic", snap[attribution.OrganicMedium])

	snap = capture.CaptureSnapshot(attribution.NewPage("https://site.example/next", "https://blog.example/post"), store)
	assert.Equal(t, "bing", snap[attribution.OrganicSource], "non-engine referrer leaves the stored source")
	assert.Equal(t, "referral", snap[attribution.OrganicMedium])
}

func TestCaptureMalformedInputNeverFails(t *testing.T) {
	capture := newCapture()
	store := attribution.NewMemoryStore(nil)

	snap := capture.CaptureSnapshot(attribution.Page{URL: "http://[::1/?utm_source=x", Referrer: "::not a url::"}, store)
	_, hasSource := snap[attribution.UTMSource]
	assert.False(t, hasSource)
	_, hasMedium := snap[attribution.OrganicMedium]
	assert.False(t, hasMedium)
	assert.Equal(t, "http://[::1/?utm_source=x", snap[attribution.CurrentURL])
}

func TestClearAllThenBareCaptureHasOnlyCurrentURL(t *testing.T) {
	capture := newCapture()
	store := attribution.NewMemoryStore(nil)

	capture.CaptureSnapshot(attribution.NewPage(
		"https://site.example/?utm_source=a&fbclid=f&twclid=t", "https://www.google.com/"), store)
	capture.ClearAll(store)

	snap := capture.CaptureSnapshot(attribution.NewPage("https://site.example/after", ""), store)
	assert.Equal(t, attribution.Snapshot{attribution.CurrentURL: "https://site.example/after"}, snap)
}

func TestGetValue(t *testing.T) {
	capture := newCapture()
	store := attribution.NewMemoryStore(nil)
	page := attribution.NewPage("https://site.example/?msclkid=m-9", "")

	v, ok := capture.GetValue(page, store, attribution.MSCLKID)
	require.True(t, ok)
	assert.Equal(t, "m-9", v)

	_, ok = capture.GetValue(page, store, attribution.TTCLID)
	assert.False(t, ok)
}

// visit is one generated page view for the property test.
type visit struct {
	Path     string
	Source   string
	Referrer string
}

func TestFirstTouchNeverOverwritten(t *testing.T) {
	referrers := []string{"", "https://www.google.com/", "https://news.example/", "https://duckduckgo.com/"}
	genVisit := gopter.CombineGens(
		gen.Identifier(),
		gen.OneConstOf("", "ads", "mail", "social"),
		gen.IntRange(0, len(referrers)-1),
	).Map(func(v []interface{}) visit {
		return visit{Path: v[0].(string), Source: v[1].(string), Referrer: referrers[v[2].(int)]}
	})

	properties := gopter.NewProperties(nil)
	properties.Property("landing_page and referrer keep their first persisted value", prop.ForAll(
		func(visits []visit) bool {
			capture := newCapture()
			store := attribution.NewMemoryStore(nil)
			var landing, referrer string

			for _, v := range visits {
				url := fmt.Sprintf("https://site.example/%s", v.Path)
				if v.Source != "" {
					url += "?utm_source=" + v.Source
				}
				capture.CaptureSnapshot(attribution.NewPage(url, v.Referrer), store)

				gotLanding, _ := store.Get(attribution.LandingPage)
				gotReferrer, _ := store.Get(attribution.Referrer)
				if landing == "" {
					landing = gotLanding
				} else if gotLanding != landing {
					return false
				}
				if referrer == "" {
					referrer = gotReferrer
				} else if gotReferrer != referrer {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genVisit),
	))

	properties.TestingRun(t)
}
