package repository

import "time"

// parseOrZero parses an RFC3339 timestamp, returning the zero time on
// failure rather than an error — callers pass a timestamp they just
// formatted themselves, so a parse failure here indicates a programmer
// error, not bad external input.
func parseOrZero(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
