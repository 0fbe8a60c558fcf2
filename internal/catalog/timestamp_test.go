package catalog

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_Unmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{`"2024-01-15T10:30:00Z"`, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{`"2024-01-15T12:30:00+02:00"`, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{`"2024-01-15T10:30:00.123456"`, time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.UTC)},
		{`"2024-01-15T10:30:00"`, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{`"2024-01-15 10:30:00.5"`, time.Date(2024, 1, 15, 10, 30, 0, 500000000, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}

	for _, tc := range cases {
		var ts Timestamp
		if err := json.Unmarshal([]byte(tc.in), &ts); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if !ts.Equal(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.in, ts.Time, tc.want)
		}
	}

	for _, bad := range []string{`"yesterday"`, `"2024-13-01T00:00:00"`, `42`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(bad), &ts); err == nil {
			t.Fatalf("%s: expected error", bad)
		}
	}
}

func TestTimestamp_MarshalsRFC3339(t *testing.T) {
	ts, err := ParseTimestamp("2024-01-15T10:30:00.123456")
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(Product{ID: "1", CreatedAt: ts})
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if raw["created_at"] != "2024-01-15T10:30:00.123456Z" {
		t.Fatalf("created_at=%v", raw["created_at"])
	}
}
