// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no country prefix.
const DefaultRegion = "CO"

// NormalizeE164 formats a phone number to E.164 using region for numbers without
// a country prefix. If parsing fails, it returns the trimmed input.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = DefaultRegion
	}

	// WhatsApp ids are international numbers without the leading plus.
	candidate := trimmed
	if !strings.HasPrefix(candidate, "+") && len(digitsOnly(candidate)) > 10 {
		candidate = "+" + digitsOnly(candidate)
	}

	number, err := phonenumbers.Parse(candidate, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// WhatsAppID returns the digits-only international form used as the WhatsApp
// recipient and as the conversation key, e.g. "573001234567".
func WhatsAppID(input, region string) string {
	return digitsOnly(NormalizeE164(input, region))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
