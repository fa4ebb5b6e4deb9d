package mainthread

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of runtime statistics for the main loop, see
// Executor.Metrics and WithMetrics.
//
// Example:
//
//	_ = mainthread.Run(ctx, func(e *mainthread.Executor) {
//		defer e.Stop()
//		// ...
//		m := e.Metrics()
//		fmt.Printf("submitted: %d, P99 latency: %v\n", m.Submitted, m.Latency.P99)
//	}, mainthread.WithMetrics(true))
type Metrics struct {
	// Latency is the delay between submitting a closure and it starting to
	// run on the main thread.
	Latency LatencyMetrics

	// Ingress tracks the depth of the cross-thread submission queue, as
	// observed by each drain.
	Ingress QueueMetrics

	// Submitted and Executed count closures passing through the
	// cross-thread queue, including internal pump requests.
	Submitted uint64
	Executed  uint64

	// ClosurePanics counts panics recovered from submitted closures.
	ClosurePanics uint64

	// Pumps counts outermost pump passes over the task queue, and Polls
	// counts individual task polls.
	Pumps uint64
	Polls uint64

	TasksSpawned   uint64
	TasksCompleted uint64
	TasksPanicked  uint64

	// TasksLive is the number of tasks resident in the task queue.
	TasksLive int
}

// LatencyMetrics summarizes a latency distribution. Percentiles are
// streaming estimates.
type LatencyMetrics struct {
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// QueueMetrics tracks queue depth statistics.
type QueueMetrics struct {
	Current int
	Max     int
	// Avg is an exponential moving average, with alpha 0.1, initialized to
	// the first observation.
	Avg float64
}

// metrics accumulates statistics. Methods are no-ops on a nil receiver,
// which is how disabled metrics are represented.
type metrics struct {
	mu         sync.Mutex
	latency    [3]quantileMarkers
	latencyMax time.Duration
	latencySum time.Duration
	latencyN   int
	ingress    QueueMetrics
	ingressSet bool

	submitted      atomic.Uint64
	executed       atomic.Uint64
	closurePanics  atomic.Uint64
	pumps          atomic.Uint64
	polls          atomic.Uint64
	tasksSpawned   atomic.Uint64
	tasksCompleted atomic.Uint64
	tasksPanicked  atomic.Uint64
	tasksLive      atomic.Int64
}

func newMetrics() *metrics {
	return &metrics{
		latency: [3]quantileMarkers{
			newQuantileMarkers(0.50),
			newQuantileMarkers(0.90),
			newQuantileMarkers(0.99),
		},
	}
}

// now returns the current time, or the zero time if metrics are disabled.
func (m *metrics) now() time.Time {
	if m == nil {
		return time.Time{}
	}
	return time.Now()
}

func (m *metrics) recordLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.latency {
		m.latency[i].observe(float64(d))
	}
	m.latencyMax = max(m.latencyMax, d)
	m.latencySum += d
	m.latencyN++
}

func (m *metrics) recordIngress(depth int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingress.Current = depth
	m.ingress.Max = max(m.ingress.Max, depth)
	if !m.ingressSet {
		m.ingress.Avg = float64(depth)
		m.ingressSet = true
	} else {
		m.ingress.Avg = 0.9*m.ingress.Avg + 0.1*float64(depth)
	}
}

func (m *metrics) add(counter func(*metrics) *atomic.Uint64) {
	if m != nil {
		counter(m).Add(1)
	}
}

func (m *metrics) addLive(delta int64) {
	if m != nil {
		m.tasksLive.Add(delta)
	}
}

func (m *metrics) snapshot() Metrics {
	if m == nil {
		return Metrics{}
	}
	s := Metrics{
		Submitted:      m.submitted.Load(),
		Executed:       m.executed.Load(),
		ClosurePanics:  m.closurePanics.Load(),
		Pumps:          m.pumps.Load(),
		Polls:          m.polls.Load(),
		TasksSpawned:   m.tasksSpawned.Load(),
		TasksCompleted: m.tasksCompleted.Load(),
		TasksPanicked:  m.tasksPanicked.Load(),
		TasksLive:      int(m.tasksLive.Load()),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Ingress = m.ingress
	s.Latency = LatencyMetrics{
		P50:   time.Duration(m.latency[0].value()),
		P90:   time.Duration(m.latency[1].value()),
		P99:   time.Duration(m.latency[2].value()),
		Max:   m.latencyMax,
		Count: m.latencyN,
	}
	if m.latencyN != 0 {
		s.Latency.Mean = m.latencySum / time.Duration(m.latencyN)
	}
	return s
}

func counterSubmitted(m *metrics) *atomic.Uint64      { return &m.submitted }
func counterExecuted(m *metrics) *atomic.Uint64       { return &m.executed }
func counterClosurePanics(m *metrics) *atomic.Uint64  { return &m.closurePanics }
func counterPumps(m *metrics) *atomic.Uint64          { return &m.pumps }
func counterPolls(m *metrics) *atomic.Uint64          { return &m.polls }
func counterTasksSpawned(m *metrics) *atomic.Uint64   { return &m.tasksSpawned }
func counterTasksCompleted(m *metrics) *atomic.Uint64 { return &m.tasksCompleted }
func counterTasksPanicked(m *metrics) *atomic.Uint64  { return &m.tasksPanicked }
