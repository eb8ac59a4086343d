package attribution

import "net/url"

// Extract returns the recognized query keys present in rawURL with a
// non-empty value, URL-decoded. For repeated keys the first value wins.
// An unparseable URL yields an empty map.
func Extract(rawURL string) map[Key]string {
	out := make(map[Key]string)
	if rawURL == "" {
		return out
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return out
	}

	// ParseQuery keeps every well-formed pair even when it reports an error
	// for another one, which matches how browsers read a query string.
	values, _ := url.ParseQuery(u.RawQuery)
	for _, k := range QueryKeys() {
		if v := values.Get(string(k)); v != "" {
			out[k] = v
		}
	}
	return out
}
