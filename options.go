package mainthread

import (
	"errors"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// DefaultSlowPumpThreshold is the pump duration above which a warning is
// logged, unless configured otherwise.
const DefaultSlowPumpThreshold = 16 * time.Millisecond

// defaultLogRates bounds error and warning events, per category.
var defaultLogRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// runOptions holds configuration options for Run.
type runOptions struct {
	logger            *logiface.Logger[logiface.Event]
	runLoop           RunLoop
	logRates          map[time.Duration]int
	slowPumpThreshold time.Duration
	metricsEnabled    bool
	logRatesSet       bool
}

// Option configures the main loop started by Run.
type Option interface {
	applyRun(*runOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyRunFunc func(*runOptions) error
}

func (o *optionImpl) applyRun(opts *runOptions) error {
	return o.applyRunFunc(opts)
}

// WithLogger configures structured logging. A nil logger disables logging,
// which is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *runOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime metrics collection, accessible via
// Executor.Metrics. This records the submit time of every closure, and the
// duration of every pump pass.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *runOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithRunLoop replaces the platform run loop used to park the main thread.
// This is the integration point for native event loops, e.g. a GUI toolkit
// that must own the main thread.
func WithRunLoop(runLoop RunLoop) Option {
	return &optionImpl{func(opts *runOptions) error {
		if runLoop == nil {
			return errors.New(`mainthread: nil run loop`)
		}
		opts.runLoop = runLoop
		return nil
	}}
}

// WithSlowPumpThreshold sets the pump duration above which a warning is
// logged. Zero or negative values disable the warning.
func WithSlowPumpThreshold(d time.Duration) Option {
	return &optionImpl{func(opts *runOptions) error {
		opts.slowPumpThreshold = d
		return nil
	}}
}

// WithLogRate sets the rate limits applied to error and warning logs, per
// category, see catrate.NewLimiter. A nil or empty map disables rate
// limiting. Invalid rates are an error.
func WithLogRate(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *runOptions) error {
		if len(rates) != 0 {
			if err := validateRates(rates); err != nil {
				return err
			}
		}
		opts.logRates = rates
		opts.logRatesSet = true
		return nil
	}}
}

func validateRates(rates map[time.Duration]int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(`mainthread: invalid log rates`)
		}
	}()
	catrate.NewLimiter(rates)
	return nil
}

// resolveOptions applies Option instances to runOptions.
func resolveOptions(opts []Option) (*runOptions, error) {
	cfg := &runOptions{
		slowPumpThreshold: DefaultSlowPumpThreshold,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRun(cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.logRatesSet {
		cfg.logRates = defaultLogRates
	}
	return cfg, nil
}
