package dispatcher

import "github.com/joeycumines/logiface"

// options holds configuration for Dispatcher creation.
type options struct {
	logger          *logiface.Logger[logiface.Event]
	channelCapacity int
	metricsEnabled  bool
}

// Option configures a Dispatcher instance.
type Option interface {
	apply(*options) error
}

type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithLogger attaches a structured logger. The dispatcher logs recovered
// bad-descriptor evictions and dropped registrations at warning level and
// channel failures at error level. A nil logger (the default) disables
// logging entirely.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime counters, accessible via
// [Dispatcher.Metrics]. The overhead is one atomic increment per counted
// event; disabled by default.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithChannelCapacity sets the initial capacity of the cross-thread
// message buffer. The buffer grows as needed; this only tunes the
// starting allocation.
func WithChannelCapacity(n int) Option {
	return &optionImpl{func(opts *options) error {
		if n < 0 {
			return &InvalidArgumentError{Op: "WithChannelCapacity", Reason: "negative capacity"}
		}
		opts.channelCapacity = n
		return nil
	}}
}

// resolveOptions applies Option instances to options.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
