package fiber

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a point-in-time copy of a scheduler's runtime statistics.
//
// Example:
//
//	s, _ := NewScheduler(4, WithMetrics(true))
//	...
//	m := s.Metrics()
//	fmt.Printf("dispatched: %d, P99 slice: %v\n", m.Dispatched, m.Latency.P99)
type Metrics struct {
	// Latency summarizes how long each dispatch ran before the fiber
	// suspended or finished.
	Latency Latency

	// Dispatched counts fibers and callables switched into.
	Dispatched uint64
	// Requeued counts dispatches that ended in StateReady.
	Requeued uint64
	// Held counts dispatches that ended in StateHold.
	Held uint64
	// Completed counts dispatches that ended in StateTerm.
	Completed uint64
	// Failed counts dispatches that ended in StateExcept.
	Failed uint64
	// Idled counts switches into idle fibers.
	Idled uint64
	// Tickles counts tickle hook invocations.
	Tickles uint64

	// QueueMax is the deepest the run queue has been.
	QueueMax int
	// QueueAvg is an exponential moving average (alpha=0.1) of the run
	// queue depth, observed at each schedule.
	QueueAvg float64
}

// Latency holds percentiles of the retained latency samples.
type Latency struct {
	P50     time.Duration
	P90     time.Duration
	P95     time.Duration
	P99     time.Duration
	Max     time.Duration
	Mean    time.Duration
	Samples int
}

// sampleSize is the maximum number of latency samples to retain.
// We keep a rolling buffer of 1000 samples to compute percentiles.
const sampleSize = 1000

// latencyMetrics tracks latency distribution with percentiles.
type latencyMetrics struct {
	samples     [sampleSize]time.Duration
	sum         time.Duration
	sampleIdx   int
	sampleCount int
	mu          sync.Mutex
}

// Record records a latency sample.
func (l *latencyMetrics) Record(duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// If buffer is full, subtract the old sample that we're replacing
	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}

	l.samples[l.sampleIdx] = duration
	l.sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles from the retained samples.
func (l *latencyMetrics) Sample() Latency {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return Latency{}
	}

	sorted := make([]time.Duration, count)
	copy(sorted, l.samples[:count])
	slices.Sort(sorted)

	return Latency{
		P50:     sorted[percentileIndex(count, 50)],
		P90:     sorted[percentileIndex(count, 90)],
		P95:     sorted[percentileIndex(count, 95)],
		P99:     sorted[percentileIndex(count, 99)],
		Max:     sorted[count-1],
		Mean:    l.sum / time.Duration(count),
		Samples: count,
	}
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// queueMetrics tracks run queue depth statistics.
type queueMetrics struct {
	avg         float64
	max         int
	mu          sync.Mutex
	initialized bool
}

// Update records an observed queue depth.
func (q *queueMetrics) Update(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if depth > q.max {
		q.max = depth
	}
	// Warmstart: initialize to first observed value for accuracy
	if !q.initialized {
		q.avg = float64(depth)
		q.initialized = true
	} else {
		q.avg = 0.9*q.avg + 0.1*float64(depth)
	}
}

// metricsRecorder is the live counterpart of Metrics. All methods are safe
// to call on a nil receiver, which records nothing.
type metricsRecorder struct {
	latency    latencyMetrics
	queue      queueMetrics
	dispatched atomic.Uint64
	requeued   atomic.Uint64
	held       atomic.Uint64
	completed  atomic.Uint64
	failed     atomic.Uint64
	idled      atomic.Uint64
	tickles    atomic.Uint64
}

func (m *metricsRecorder) start() time.Time {
	if m == nil {
		return time.Time{}
	}
	m.dispatched.Add(1)
	return time.Now()
}

func (m *metricsRecorder) finish(start time.Time, st State) {
	if m == nil {
		return
	}
	m.latency.Record(time.Since(start))
	switch st {
	case StateReady:
		m.requeued.Add(1)
	case StateTerm:
		m.completed.Add(1)
	case StateExcept:
		m.failed.Add(1)
	default:
		m.held.Add(1)
	}
}

func (m *metricsRecorder) idle() {
	if m != nil {
		m.idled.Add(1)
	}
}

func (m *metricsRecorder) tickle() {
	if m != nil {
		m.tickles.Add(1)
	}
}

func (m *metricsRecorder) queueDepth(depth int) {
	if m != nil {
		m.queue.Update(depth)
	}
}

func (m *metricsRecorder) snapshot() *Metrics {
	if m == nil {
		return nil
	}
	m.queue.mu.Lock()
	queueMax, queueAvg := m.queue.max, m.queue.avg
	m.queue.mu.Unlock()
	return &Metrics{
		Latency:    m.latency.Sample(),
		Dispatched: m.dispatched.Load(),
		Requeued:   m.requeued.Load(),
		Held:       m.held.Load(),
		Completed:  m.completed.Load(),
		Failed:     m.failed.Load(),
		Idled:      m.idled.Load(),
		Tickles:    m.tickles.Load(),
		QueueMax:   queueMax,
		QueueAvg:   queueAvg,
	}
}
