package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Zoneless layouts written by older catalog tooling; they are read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a product's created_at. It always marshals as RFC3339 and
// also accepts timestamps without a zone offset.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(t), nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}

	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) Compare(u Timestamp) int { return t.Time.Compare(u.Time) }
