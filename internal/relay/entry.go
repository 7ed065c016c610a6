package relay

import (
	"errors"
	"fmt"
)

// ErrInvalidTTL is returned when a cache call budget is not strictly positive.
var ErrInvalidTTL = errors.New("relay: cache ttl must be positive")

// Entry is the last value forwarded for a key together with the number of
// lookups it may still answer. Every read consumes one use; once the budget
// is spent the entry is stale and the key must be forwarded again.
type Entry struct {
	value     string
	remaining int
}

func NewEntry(value string, ttl int) (*Entry, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTTL, ttl)
	}
	return &Entry{value: value, remaining: ttl}, nil
}

// Get the stored value, consuming one use of the budget
func (e *Entry) Get() (string, bool) {
	if e.remaining <= 0 {
		return "", false
	}
	e.remaining--
	return e.value, true
}

func (e *Entry) Remaining() int { return e.remaining }
