package state

import "time"

// timestampLayouts covers the formats sources actually emit: RFC 3339
// with or without fractional seconds, and zone-less ISO 8601 from
// firmware that reports wall-clock UTC without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp normalizes a source-reported timestamp to UTC.
//
// Zone-less timestamps are interpreted as UTC. Malformed or empty
// values return ok=false; callers treat that as the timestamp being
// absent rather than failing the whole snapshot.
//
// Parameters:
//   - value: raw timestamp, typically a string from a decoded JSON
//     payload. time.Time values pass through normalized.
//
// Returns:
//   - time.Time: the normalized UTC timestamp
//   - bool: false when the value could not be interpreted
func ParseTimestamp(value any) (time.Time, bool) {
	switch raw := value.(type) {
	case time.Time:
		if raw.IsZero() {
			return time.Time{}, false
		}
		return raw.UTC(), true
	case string:
		if raw == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
				return ts.UTC(), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
