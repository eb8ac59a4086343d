// Package cookies implements attribution.Store on top of HTTP cookies.
//
// A Store is bound to one request/response pair. Reads see the request's
// cookies overlaid with every write made while handling the request, the way
// document.cookie behaves for a script running in the page.
package cookies

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
)

// maxCookieBytes is the size browsers accept for name plus value.
const maxCookieBytes = 4096

// Options configure a Store.
type Options struct {
	Prefix string
	Secure bool
	Now    func() time.Time
	Logger *slog.Logger
}

// Store is a cookie-backed attribution.Store for a single request.
type Store struct {
	w      http.ResponseWriter
	prefix string
	secure bool
	now    func() time.Time
	logger *slog.Logger

	mu   sync.Mutex
	view map[string]string // cookie name -> raw (encoded) value
}

var _ attribution.Store = (*Store)(nil)

// New creates a Store reading the request cookies and writing Set-Cookie
// headers to w.
func New(r *http.Request, w http.ResponseWriter, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{
		w:      w,
		prefix: opts.Prefix,
		secure: opts.Secure,
		now:    opts.Now,
		logger: opts.Logger,
		view:   make(map[string]string),
	}
	for _, c := range r.Cookies() {
		if strings.HasPrefix(c.Name, s.prefix) {
			// first occurrence wins, as in document.cookie lookups
			if _, seen := s.view[c.Name]; !seen {
				s.view[c.Name] = c.Value
			}
		}
	}
	return s
}

// Name returns the namespaced cookie name for key.
func (s *Store) Name(key attribution.Key) string {
	return s.prefix + string(key)
}

// Get returns the decoded value stored for key.
func (s *Store) Get(key attribution.Key) (string, bool) {
	s.mu.Lock()
	raw, ok := s.view[s.Name(key)]
	s.mu.Unlock()
	if !ok || raw == "" {
		return "", false
	}
	v, err := url.PathUnescape(raw)
	if err != nil {
		// Written by something else; hand back the raw bytes.
		return raw, true
	}
	return v, v != ""
}

// escapeValue encodes v the way encodeURIComponent does, so form decoders
// never read a literal '+' as a space.
func escapeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// Set writes key unconditionally, then verifies the write by reading it back.
// A rejected cookie is logged and otherwise ignored.
func (s *Store) Set(key attribution.Key, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     s.Name(key),
		Value:    escapeValue(value),
		Path:     "/",
		Expires:  s.now().Add(ttl).UTC(),
		MaxAge:   int(ttl.Seconds()),
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	}

	if s.accepts(c) {
		http.SetCookie(s.w, c)
		s.mu.Lock()
		s.view[c.Name] = c.Value
		s.mu.Unlock()
	}

	if got, _ := s.Get(key); got != value {
		s.logger.Warn("Cookie was not saved correctly",
			"cookie", c.Name,
			"expected", truncate(value, 50),
			"got", truncate(got, 50))
		return
	}
	s.logger.Debug("Cookie saved", "cookie", c.Name, "value", truncate(value, 50))
}

// Clear expires every named record immediately.
func (s *Store) Clear(keys ...attribution.Key) {
	for _, key := range keys {
		http.SetCookie(s.w, &http.Cookie{
			Name:     s.Name(key),
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			SameSite: http.SameSiteLaxMode,
			Secure:   s.secure,
		})
		s.mu.Lock()
		delete(s.view, s.Name(key))
		s.mu.Unlock()
	}
}

// accepts mirrors the checks a browser applies before storing a cookie.
func (s *Store) accepts(c *http.Cookie) bool {
	if err := c.Valid(); err != nil {
		return false
	}
	return len(c.Name)+len(c.Value) <= maxCookieBytes
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
