package pointers

import "time"

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func Int(v int) *int          { return &v }
func String(v string) *string { return &v }
func Time(v time.Time) *time.Time {
	return &v
}

// StringOrEmpty dereferences s, treating nil as "".
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
