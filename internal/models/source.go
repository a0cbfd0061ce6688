package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Source documents coming back from the search index are loosely typed: the
// same field can arrive as a number, a numeric string or not at all. The
// types below never fail to decode; anything they cannot interpret becomes
// null instead of rejecting the whole hit.

type sourceInt struct{ v *int64 }

func (s *sourceInt) UnmarshalJSON(b []byte) error {
	s.v = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	text := string(b)
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		text = strings.TrimSpace(str)
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		s.v = &n
		return nil
	}
	// Whole numbers sometimes arrive as 100.0
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == float64(int64(f)) {
		n := int64(f)
		s.v = &n
	}
	return nil
}

func (s sourceInt) ptr() *int64 {
	if s.v == nil {
		return nil
	}
	v := *s.v
	return &v
}

type sourceString struct{ v *string }

func (s *sourceString) UnmarshalJSON(b []byte) error {
	s.v = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	switch b[0] {
	case '"':
		var str string
		if err := json.Unmarshal(b, &str); err == nil {
			s.v = &str
		}
	case '{', '[':
		// objects and arrays have no string form in the target schema
	default:
		str := string(b)
		s.v = &str
	}
	return nil
}

func (s sourceString) ptr() *string {
	if s.v == nil {
		return nil
	}
	v := *s.v
	return &v
}

func (s sourceString) present() bool {
	return s.v != nil && *s.v != ""
}

// Layouts accepted for event dates, tried in order
var sourceTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type sourceTime struct{ v *time.Time }

func (s *sourceTime) UnmarshalJSON(b []byte) error {
	s.v = nil
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return nil
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}

	for _, layout := range sourceTimeLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			t = t.UTC()
			s.v = &t
			return nil
		}
	}
	return nil
}

func (s sourceTime) ptr() *time.Time {
	if s.v == nil {
		return nil
	}
	v := *s.v
	return &v
}
