package attribution

import "net/url"

// Snapshot maps each resolved key to its value. Only non-empty values are
// present, except CurrentURL which is always set.
type Snapshot map[Key]string

// Get returns the value for key and whether it was resolved.
func (s Snapshot) Get(key Key) (string, bool) {
	v, ok := s[key]
	return v, ok && v != ""
}

// Value returns the value for key or the empty string.
func (s Snapshot) Value(key Key) string {
	return s[key]
}

// Strings flattens the snapshot into a string-keyed map suitable for JSON.
func (s Snapshot) Strings() map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[string(k)] = v
	}
	return out
}

// Without returns a copy of the snapshot with the given keys removed.
func (s Snapshot) Without(keys ...Key) Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Page describes the page being captured: its live URL, the document
// referrer, and whether it was served over an encrypted transport.
type Page struct {
	URL      string
	Referrer string
	Secure   bool
}

// NewPage builds a Page, deriving Secure from the URL scheme.
func NewPage(rawURL, referrer string) Page {
	p := Page{URL: rawURL, Referrer: referrer}
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "https" {
		p.Secure = true
	}
	return p
}
