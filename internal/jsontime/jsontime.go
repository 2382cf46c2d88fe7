// Package jsontime encodes timestamps in the dd/MM/yyyy HH:mm:ss form used
// by every JSON body of the task and user services.
package jsontime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layout is the Go reference layout for dd/MM/yyyy HH:mm:ss.
const Layout = "02/01/2006 15:04:05"

// Time is a time.Time that marshals with Layout in UTC.
type Time struct {
	time.Time
}

func New(t time.Time) Time {
	return Time{t}
}

// Ptr wraps an optional timestamp.
func Ptr(t *time.Time) *Time {
	if t == nil {
		return nil
	}
	return &Time{*t}
}

// Std unwraps an optional timestamp.
func (t *Time) Std() *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(Layout))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string formatted as dd/MM/yyyy HH:mm:ss")
	}

	v, err := Parse(s)
	if err != nil {
		return err
	}

	t.Time = v
	return nil
}

// Parse reads s as a UTC timestamp in Layout.
func Parse(s string) (time.Time, error) {
	v, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q must be formatted as dd/MM/yyyy HH:mm:ss", s)
	}
	return v, nil
}
