package store

import (
	"database/sql"
	"time"
)

// Nanos encodes t as unix nanoseconds.
func Nanos(t time.Time) int64 {
	return t.UnixNano()
}

// FromNanos decodes unix nanoseconds into a UTC time.
func FromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// NullNanos encodes an optional timestamp; nil stays NULL.
func NullNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

// TimeFromNull decodes an optional timestamp column.
func TimeFromNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromNanos(n.Int64)
	return &t
}

// NullString encodes an optional string; nil stays NULL.
func NullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// StringFromNull decodes an optional string column.
func StringFromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// Bool encodes a boolean as 0 or 1.
func Bool(b bool) int {
	if b {
		return 1
	}
	return 0
}
