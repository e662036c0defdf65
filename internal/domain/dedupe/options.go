package dedupe

// Option configures a deduper built by NewInMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps the number of remembered request ids; once full the least
// recently seen id is forgotten. A size of zero or less never forgets.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
