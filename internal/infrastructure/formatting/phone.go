// Package formatting provides optional value normalizers used by the form bridge.
package formatting

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// PhoneFormatter formats phone numbers as E.164, assuming DefaultRegion for
// numbers written without a country code.
type PhoneFormatter struct {
	DefaultRegion string
}

// NewPhoneFormatter creates a formatter for region (ISO 3166-1 alpha-2).
func NewPhoneFormatter(region string) *PhoneFormatter {
	return &PhoneFormatter{DefaultRegion: strings.ToUpper(region)}
}

// Available reports whether the formatter has a usable region.
func (f *PhoneFormatter) Available() bool {
	if f == nil || f.DefaultRegion == "" {
		return false
	}
	return phonenumbers.GetCountryCodeForRegion(f.DefaultRegion) != 0
}

// Format parses raw and returns it in E.164 form.
func (f *PhoneFormatter) Format(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, f.DefaultRegion)
	if err != nil {
		return "", fmt.Errorf("parse phone number: %w", err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", fmt.Errorf("phone number %q is not possible for region %s", raw, f.DefaultRegion)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
