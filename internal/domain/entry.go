package domain

import "time"

// Entry is a value produced by the origin for a key
type Entry struct {
	Key         string
	Value       []byte
	ContentType string
	FetchedAt   time.Time
}

// Age of the entry relative to now
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}
