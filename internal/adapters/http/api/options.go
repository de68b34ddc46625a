package api

const defaultMaxUploadBytes = 50 << 20

type options struct {
	maxUploadBytes int64
}

// Option configures a Server.
type Option func(*options)

// WithMaxUploadBytes bounds the multipart body accepted by POST /datasets.
func WithMaxUploadBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxUploadBytes = n
		}
	}
}
