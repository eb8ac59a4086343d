// Package attribution defines the attribution keys, snapshots and page context
// shared by the capture, storage and form bridge layers.
package attribution

// Key identifies one attribution value. The set of keys is closed.
type Key string

const (
	UTMSource   Key = "utm_source"
	UTMMedium   Key = "utm_medium"
	UTMCampaign Key = "utm_campaign"
	UTMTerm     Key = "utm_term"
	UTMContent  Key = "utm_content"

	GCLID     Key = "gclid"
	GadSource Key = "gad_source"
	GBRAID    Key = "gbraid"
	WBRAID    Key = "wbraid"
	FBCLID    Key = "fbclid"
	MSCLKID   Key = "msclkid"
	TTCLID    Key = "ttclid"
	TWCLID    Key = "twclid"

	LandingPage   Key = "landing_page"
	Referrer      Key = "referrer"
	OrganicSource Key = "organic_source"
	OrganicMedium Key = "organic_medium"
	CurrentURL    Key = "current_url"
)

// UTMKeys are the standard campaign parameters.
var UTMKeys = []Key{UTMSource, UTMMedium, UTMCampaign, UTMTerm, UTMContent}

// ClickIDKeys are the ad-platform click identifiers.
var ClickIDKeys = []Key{GCLID, GadSource, GBRAID, WBRAID, FBCLID, MSCLKID, TTCLID, TWCLID}

// QueryKeys returns the keys read from the page query string, in capture order.
func QueryKeys() []Key {
	keys := make([]Key, 0, len(UTMKeys)+len(ClickIDKeys))
	keys = append(keys, UTMKeys...)
	return append(keys, ClickIDKeys...)
}

// PersistedKeys returns every key that may be written to the store.
// CurrentURL is derived live and never persisted.
func PersistedKeys() []Key {
	return append(QueryKeys(), LandingPage, Referrer, OrganicSource, OrganicMedium)
}

// AllKeys returns the full closed key set in snapshot order.
func AllKeys() []Key {
	return append(PersistedKeys(), CurrentURL)
}

// ParseKey resolves a raw name to a Key.
func ParseKey(name string) (Key, bool) {
	for _, k := range AllKeys() {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// FirstTouch reports whether the key keeps its earliest persisted value.
func (k Key) FirstTouch() bool {
	return k == LandingPage || k == Referrer
}

// Persisted reports whether the key is ever written to the store.
func (k Key) Persisted() bool {
	return k != CurrentURL
}

func (k Key) String() string { return string(k) }
