package domain

import "time"

// DefaultTimezone is used when a user has no timezone or an invalid one.
const DefaultTimezone = "America/New_York"

// LoadLocation resolves name, falling back to fallback and then UTC.
func LoadLocation(name, fallback string) *time.Location {
	for _, n := range []string{name, fallback} {
		if n == "" {
			continue
		}
		if loc, err := time.LoadLocation(n); err == nil {
			return loc
		}
	}
	return time.UTC
}
