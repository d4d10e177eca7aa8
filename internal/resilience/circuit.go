package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position in its closed/open/half-open cycle.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker tracks the failure ratio of an outbound dependency and refuses
// traffic once the ratio crosses the configured threshold. After the cool-off
// window a single probe decides whether the dependency recovered.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	minReqs   int
	threshold float64
	openedAt  time.Time
	openFor   time.Duration
	target    string
}

// NewBreaker builds a closed breaker. minReqs is the number of observations
// required before the ratio is evaluated, threshold is the failure fraction
// that trips it, and openFor is the cool-off before a half-open probe.
func NewBreaker(minReqs int, threshold float64, openFor time.Duration) *Breaker {
	if minReqs <= 0 {
		minReqs = 1
	}
	if threshold <= 0 {
		threshold = 0.5
	}
	if threshold > 1 {
		threshold = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{state: Closed, minReqs: minReqs, threshold: threshold, openFor: openFor}
}

// WithTarget labels the breaker for metrics and transition logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.gaugeLocked()
	return b
}

// Allow reports whether a request may proceed. An open breaker lets one probe
// through once the cool-off elapsed, moving to half-open.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if time.Since(b.openedAt) < b.openFor {
		return false
	}
	b.transitionLocked(ctx, HalfOpen)
	return true
}

// Report feeds the outcome of a permitted request back into the state machine.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	if success {
		b.successes++
	} else {
		b.failures++
	}
	total := b.failures + b.successes
	if total < b.minReqs {
		return
	}
	if float64(b.failures)/float64(total) >= b.threshold {
		b.transitionLocked(ctx, Open)
		return
	}
	if total > b.minReqs*2 {
		// Decay the window so old outcomes stop dominating the ratio.
		b.successes = int(math.Ceil(float64(b.successes) * 0.5))
		b.failures = int(math.Ceil(float64(b.failures) * 0.5))
	}
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.gaugeLocked()
		return
	}
	b.state = next
	if next == Open {
		b.openedAt = time.Now()
	} else if next == Closed {
		b.openedAt = time.Time{}
	}
	b.failures = 0
	b.successes = 0
	b.gaugeLocked()

	label := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}
	evt := zerolog.Ctx(ctx).Info().
		Str("target", label).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) gaugeLocked() {
	if BreakerState == nil {
		return
	}
	var v float64
	switch b.state {
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	BreakerState.WithLabelValues(b.label()).Set(v)
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

// Backoff returns the exponential delay for a retry attempt (1-based), with
// jitterPct expressed as a fraction of the computed delay.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}
