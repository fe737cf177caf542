package threshold

import (
	"math"
	"sync"
	"time"

	"polyalert/internal/domain"
)

const (
	// DefaultWindowCap bounds the rolling window per metric/language key.
	DefaultWindowCap = 200
	// AdaptiveMinSamples gates adaptive mean+2σ thresholds.
	AdaptiveMinSamples = 100
	// AnomalyMinSamples gates anomaly scoring.
	AnomalyMinSamples = 30
)

// point is one recorded sample in a rolling window.
// Params: record time and measured value.
// Returns: window element for statistics and baselines.
type point struct {
	at    time.Time
	value float64
}

// window is a bounded ring of the most recent samples for one key.
// Params: fixed-capacity buffer with head index and fill size.
// Returns: overwrite-oldest sample storage.
type window struct {
	points []point
	head   int
	size   int
}

// push appends one point, evicting the oldest at capacity.
// Params: sample point.
// Returns: window mutated in place.
func (w *window) push(p point) {
	if w.size < len(w.points) {
		w.points[(w.head+w.size)%len(w.points)] = p
		w.size++
		return
	}
	w.points[w.head] = p
	w.head = (w.head + 1) % len(w.points)
}

// at returns the i-th oldest point.
// Params: index in [0, size).
// Returns: stored point.
func (w *window) at(i int) point {
	return w.points[(w.head+i)%len(w.points)]
}

// Store keeps rolling historical samples per metric/language key and
// computes adaptive statistics over them. No I/O; all state is in memory.
// Params: bounded ring windows guarded by one mutex.
// Returns: threshold source for the condition evaluator and scheduler.
type Store struct {
	mu      sync.RWMutex
	cap     int
	windows map[string]*window
}

// NewStore creates a threshold store with the given per-key window capacity.
// Params: window capacity (DefaultWindowCap when <=0).
// Returns: initialized store.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultWindowCap
	}
	return &Store{
		cap:     capacity,
		windows: make(map[string]*window),
	}
}

// Record appends one sample to the metric/language rolling window.
// Params: metric key, language code, sample time, and value.
// Returns: none.
func (s *Store) Record(metric, language string, at time.Time, value float64) {
	key := storeKey(metric, language)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok {
		w = &window{points: make([]point, s.cap)}
		s.windows[key] = w
	}
	w.push(point{at: at, value: value})
}

// SampleCount returns the number of retained samples for one key.
// Params: metric key and language code.
// Returns: current window size.
func (s *Store) SampleCount(metric, language string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[storeKey(metric, language)]
	if !ok {
		return 0
	}
	return w.size
}

// LastValue returns the most recent recorded value for one key.
// Params: metric key and language code.
// Returns: latest value and existence flag.
func (s *Store) LastValue(metric, language string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[storeKey(metric, language)]
	if !ok || w.size == 0 {
		return 0, false
	}
	return w.at(w.size - 1).value, true
}

// EffectiveThreshold resolves the numeric threshold for one rule/language.
// Fixed thresholds pass through. Adaptive thresholds require more than
// AdaptiveMinSamples retained samples and resolve to mean+2σ; otherwise the
// static warning value stays authoritative.
// Params: rule definition and language code.
// Returns: threshold to compare samples against.
func (s *Store) EffectiveThreshold(rule domain.AlertRule, language string) float64 {
	if rule.Threshold.Fixed != nil {
		return *rule.Threshold.Fixed
	}
	if rule.Threshold.Adaptive {
		mean, stddev, count := s.stats(rule.Metric, language)
		if count > AdaptiveMinSamples {
			return mean + 2*stddev
		}
	}
	return rule.Threshold.Warning
}

// AnomalyScore reports whether value deviates more than k standard
// deviations from the window mean. Below AnomalyMinSamples the verdict is
// always false: missing history is a non-breach, not an error.
// Params: metric key, language code, candidate value, and deviation factor k.
// Returns: true when |value-mean| > k*stddev.
func (s *Store) AnomalyScore(metric, language string, value, k float64) bool {
	mean, stddev, count := s.stats(metric, language)
	if count < AnomalyMinSamples {
		return false
	}
	return math.Abs(value-mean) > k*stddev
}

// Baseline aggregates window samples recorded after cutoff, excluding the
// newest entry, using the rule aggregation. The newest entry is excluded so
// a just-recorded sample is never its own baseline.
// Params: metric key, language code, window cutoff, and aggregation mode.
// Returns: aggregated baseline, contributing sample count.
func (s *Store) Baseline(metric, language string, cutoff time.Time, agg domain.Aggregation) (float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[storeKey(metric, language)]
	if !ok || w.size < 2 {
		return 0, 0
	}

	count := 0
	sum := 0.0
	maxValue := math.Inf(-1)
	minValue := math.Inf(1)
	for i := 0; i < w.size-1; i++ {
		p := w.at(i)
		if p.at.Before(cutoff) {
			continue
		}
		count++
		sum += p.value
		if p.value > maxValue {
			maxValue = p.value
		}
		if p.value < minValue {
			minValue = p.value
		}
	}
	if count == 0 {
		return 0, 0
	}

	switch agg {
	case domain.AggregationMax:
		return maxValue, count
	case domain.AggregationMin:
		return minValue, count
	case domain.AggregationSum:
		return sum, count
	case domain.AggregationCount:
		return float64(count), count
	default:
		return sum / float64(count), count
	}
}

// stats computes mean and population standard deviation over one window.
// Params: metric key and language code.
// Returns: mean, stddev, and sample count.
func (s *Store) stats(metric, language string) (float64, float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[storeKey(metric, language)]
	if !ok || w.size == 0 {
		return 0, 0, 0
	}

	sum := 0.0
	for i := 0; i < w.size; i++ {
		sum += w.at(i).value
	}
	mean := sum / float64(w.size)

	variance := 0.0
	for i := 0; i < w.size; i++ {
		diff := w.at(i).value - mean
		variance += diff * diff
	}
	variance /= float64(w.size)

	return mean, math.Sqrt(variance), w.size
}

// storeKey builds the metric/language window key.
// Params: metric key and language code.
// Returns: composite map key.
func storeKey(metric, language string) string {
	return metric + "|" + language
}
