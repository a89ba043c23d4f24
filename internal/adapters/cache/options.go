package cache

type EvictionReason int

const (
	EvictionReasonCapacity EvictionReason = iota + 1
	EvictionReasonInvalidated
	EvictionReasonCleared
)

func (r EvictionReason) String() string {
	switch r {
	case EvictionReasonCapacity:
		return "capacity"
	case EvictionReasonInvalidated:
		return "invalidated"
	case EvictionReasonCleared:
		return "cleared"
	}
	return "unknown"
}

type options struct {
	name     string
	capacity int
	bounded  bool
}

type Option func(*options)

// WithCapacity bounds the number of resident keys.
//
// A non-positive capacity is treated as 0: every access evicts the entry it created,
// so nothing is retained beyond the current access.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		o.capacity = max(capacity, 0)
		o.bounded = true
	}
}

// WithName sets the name used in logs and metrics
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
