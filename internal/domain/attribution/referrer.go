package attribution

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Medium classifies how a visitor arrived.
type Medium string

const (
	MediumOrganic  Medium = "organic"
	MediumReferral Medium = "referral"
)

// searchEngines is the closed list of engines recognized by DetectSource.
// Country variants are covered by matching the registrable domain label.
var searchEngines = map[string]bool{
	"google":     true,
	"bing":       true,
	"yahoo":      true,
	"duckduckgo": true,
	"yandex":     true,
	"baidu":      true,
}

// organicEngines is the subset whose traffic counts as organic search.
var organicEngines = map[string]bool{
	"google": true,
	"bing":   true,
	"yahoo":  true,
}

// referrerHost returns the lowercased host of a referrer URL, or false when
// the referrer is empty, unparseable or has no host.
func referrerHost(referrer string) (string, bool) {
	if strings.TrimSpace(referrer) == "" {
		return "", false
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return "", false
	}
	return host, true
}

// engineFor maps a host to a search engine identifier.
func engineFor(host string) (string, bool) {
	if net.ParseIP(host) != nil {
		return "", false
	}
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == host {
		return "", false
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	label, _, _ := strings.Cut(registrable, ".")
	if !searchEngines[label] {
		return "", false
	}
	return label, true
}

// DetectSource returns the short identifier of the search engine the
// referrer belongs to, e.g. "google" for https://www.google.com/.
func DetectSource(referrer string) (string, bool) {
	host, ok := referrerHost(referrer)
	if !ok {
		return "", false
	}
	return engineFor(host)
}

// DetectMedium returns MediumOrganic for google, bing and yahoo referrers,
// MediumReferral for any other parseable referrer, and false when there is
// no usable referrer.
func DetectMedium(referrer string) (Medium, bool) {
	host, ok := referrerHost(referrer)
	if !ok {
		return "", false
	}
	if engine, ok := engineFor(host); ok && organicEngines[engine] {
		return MediumOrganic, true
	}
	return MediumReferral, true
}
