package inflight

// Option configures a Tracker.
type Option func(*options)

type options struct {
	onChange func(size int64)
}

// WithSizeObserver calls fn with the new size after every Begin or Done that
// changed it. fn runs outside the tracker lock.
func WithSizeObserver(fn func(size int64)) Option {
	return func(o *options) {
		o.onChange = fn
	}
}
