package mainthread

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Log categories, used as rate limiting keys.
const (
	categoryClosurePanic = `closure_panic`
	categoryTaskPanic    = `task_panic`
	categorySlowPump     = `slow_pump`
	categoryCellRelease  = `cell_release`
	categoryWake         = `wake`
)

// eventLogger wraps the configured logger, rate limiting error and warning
// events per category. The zero value logs nothing.
type eventLogger struct {
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
}

func newEventLogger(logger *logiface.Logger[logiface.Event], rates map[time.Duration]int) eventLogger {
	x := eventLogger{logger: logger}
	if logger != nil && len(rates) != 0 {
		x.limiter = catrate.NewLimiter(rates)
	}
	return x
}

func (x eventLogger) info() *logiface.Builder[logiface.Event] {
	return x.logger.Info()
}

func (x eventLogger) debug() *logiface.Builder[logiface.Event] {
	return x.logger.Debug()
}

// err returns a builder for an error event, or nil if category is currently
// rate limited.
func (x eventLogger) err(category string) *logiface.Builder[logiface.Event] {
	b := x.logger.Err()
	if !b.Enabled() || !x.allow(category) {
		b.Release()
		return nil
	}
	return b.Str(`category`, category)
}

// warning is like err, for warning events.
func (x eventLogger) warning(category string) *logiface.Builder[logiface.Event] {
	b := x.logger.Warning()
	if !b.Enabled() || !x.allow(category) {
		b.Release()
		return nil
	}
	return b.Str(`category`, category)
}

func (x eventLogger) allow(category string) bool {
	_, ok := x.limiter.Allow(category)
	return ok
}
