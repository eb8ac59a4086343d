// Package middleware provides gin middleware for the tracking API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/persistence/cookies"
	"github.com/AtRiskMedia/tractstack-tracking/pkg/config"
)

const (
	pageContextKey  = "attribution.page"
	storeContextKey = "attribution.store"
)

// Attribution resolves the page a request speaks for and binds a cookie
// store to the request/response pair.
//
// The page URL comes from the "u" or "url" query parameter, then the
// X-Current-URL or hx-current-url header, then the Referer header (a script
// request's Referer is the including page). The page referrer comes from the
// "r" or "referrer" query parameter, then the X-Page-Referrer header.
func Attribution(cfg config.TrackingConfig, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := ResolvePage(c.Request)
		store := cookies.New(c.Request, c.Writer, cookies.Options{
			Prefix: cfg.CookiePrefix,
			Secure: page.Secure,
			Logger: logger.Storage(),
		})

		c.Set(pageContextKey, page)
		c.Set(storeContextKey, store)
		c.Next()
	}
}

// ResolvePage builds the attribution page for an API or script request.
func ResolvePage(r *http.Request) attribution.Page {
	q := r.URL.Query()
	pageURL := firstNonEmpty(
		q.Get("u"), q.Get("url"),
		r.Header.Get("X-Current-URL"), r.Header.Get("hx-current-url"),
		r.Referer(),
	)
	referrer := firstNonEmpty(q.Get("r"), q.Get("referrer"), r.Header.Get("X-Page-Referrer"))

	page := attribution.NewPage(pageURL, referrer)
	if !page.Secure && pageURL == "" {
		page.Secure = IsSecure(r)
	}
	return page
}

// RequestURL reconstructs the absolute URL of r as the browser requested it.
func RequestURL(r *http.Request) string {
	scheme := "http"
	if IsSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// IsSecure reports whether r reached us over TLS, directly or via a proxy.
func IsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Page returns the page resolved by Attribution.
func Page(c *gin.Context) attribution.Page {
	if v, ok := c.Get(pageContextKey); ok {
		if page, ok := v.(attribution.Page); ok {
			return page
		}
	}
	return ResolvePage(c.Request)
}

// Store returns the cookie store bound by Attribution.
func Store(c *gin.Context) attribution.Store {
	if v, ok := c.Get(storeContextKey); ok {
		if store, ok := v.(attribution.Store); ok {
			return store
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
