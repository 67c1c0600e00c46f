package state

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   time.Time
		wantOK bool
	}{
		{
			name:   "rfc3339 utc",
			value:  "2026-03-01T12:00:00Z",
			want:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "rfc3339 with offset normalizes to utc",
			value:  "2026-03-01T14:00:00+02:00",
			want:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "zone-less iso8601 treated as utc",
			value:  "2026-03-01T12:00:00",
			want:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "zone-less with microseconds",
			value:  "2026-03-01T12:00:00.123456",
			want:   time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC),
			wantOK: true,
		},
		{
			name:   "space separated",
			value:  "2026-03-01 12:00:00",
			want:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "time value passes through",
			value:  time.Date(2026, 3, 1, 14, 0, 0, 0, time.FixedZone("EET", 2*3600)),
			want:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{name: "garbage string", value: "not-a-timestamp", wantOK: false},
		{name: "empty string", value: "", wantOK: false},
		{name: "wrong type", value: 1234567890, wantOK: false},
		{name: "nil", value: nil, wantOK: false},
		{name: "zero time", value: time.Time{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp() = %v, want %v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", got.Location())
			}
		})
	}
}
