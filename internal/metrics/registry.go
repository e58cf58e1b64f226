package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type metricKind string

const (
	kindCounter   metricKind = "counter"
	kindGauge     metricKind = "gauge"
	kindHistogram metricKind = "histogram"
)

// family is one registered metric name with its configuration and the
// vector holding its series.
type family struct {
	name       string
	help       string
	kind       metricKind
	labelNames []string
	buckets    []float64 // histogram only
	vec        interface{}
}

// Registry holds every registered metric family. The zero value is not
// usable; construct with NewRegistry. A Registry is intended to be created
// once at startup and shared for the process lifetime, but tests create a
// fresh one per test.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{families: map[string]*family{}}
}

// Counter registers a counter vector, or returns the existing one when the
// name was already registered with the identical configuration.
func (r *Registry) Counter(name, help string, labelNames ...string) (*CounterVec, error) {
	fam, err := r.register(name, help, kindCounter, labelNames, nil)
	if err != nil {
		return nil, err
	}
	return fam.vec.(*CounterVec), nil
}

// MustCounter is like Counter but panics on a configuration conflict.
func (r *Registry) MustCounter(name, help string, labelNames ...string) *CounterVec {
	vec, err := r.Counter(name, help, labelNames...)
	if err != nil {
		panic(err)
	}
	return vec
}

// Gauge registers a gauge vector, or returns the existing one when the
// name was already registered with the identical configuration.
func (r *Registry) Gauge(name, help string, labelNames ...string) (*GaugeVec, error) {
	fam, err := r.register(name, help, kindGauge, labelNames, nil)
	if err != nil {
		return nil, err
	}
	return fam.vec.(*GaugeVec), nil
}

// MustGauge is like Gauge but panics on a configuration conflict.
func (r *Registry) MustGauge(name, help string, labelNames ...string) *GaugeVec {
	vec, err := r.Gauge(name, help, labelNames...)
	if err != nil {
		panic(err)
	}
	return vec
}

// Histogram registers a histogram vector with the given upper bounds, or
// returns the existing one when the name was already registered with the
// identical configuration. Bounds must be sorted ascending and are fixed
// for the life of the registry; an implicit +Inf bucket is always added.
func (r *Registry) Histogram(name, help string, buckets []float64, labelNames ...string) (*HistogramVec, error) {
	if len(buckets) == 0 {
		buckets = DefBuckets
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			return nil, fmt.Errorf("metric %q: histogram buckets must be strictly ascending", name)
		}
	}
	fam, err := r.register(name, help, kindHistogram, labelNames, buckets)
	if err != nil {
		return nil, err
	}
	return fam.vec.(*HistogramVec), nil
}

// MustHistogram is like Histogram but panics on a configuration conflict.
func (r *Registry) MustHistogram(name, help string, buckets []float64, labelNames ...string) *HistogramVec {
	vec, err := r.Histogram(name, help, buckets, labelNames...)
	if err != nil {
		panic(err)
	}
	return vec
}

func (r *Registry) register(name, help string, kind metricKind, labelNames []string, buckets []float64) (*family, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("metric name cannot be empty")
	}
	for _, l := range labelNames {
		if strings.TrimSpace(l) == "" {
			return nil, fmt.Errorf("metric %q: label names cannot be empty", name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.families[name]; ok {
		if err := existing.matches(help, kind, labelNames, buckets); err != nil {
			return nil, err
		}
		return existing, nil
	}

	fam := &family{
		name:       name,
		help:       help,
		kind:       kind,
		labelNames: append([]string(nil), labelNames...),
		buckets:    append([]float64(nil), buckets...),
	}
	switch kind {
	case kindCounter:
		fam.vec = &CounterVec{fam: fam, series: map[string]*Counter{}}
	case kindGauge:
		fam.vec = &GaugeVec{fam: fam, series: map[string]*Gauge{}}
	case kindHistogram:
		fam.vec = &HistogramVec{fam: fam, series: map[string]*Histogram{}}
	}
	r.families[name] = fam
	return fam, nil
}

func (f *family) matches(help string, kind metricKind, labelNames []string, buckets []float64) error {
	if f.kind != kind {
		return fmt.Errorf("metric %q already registered as %s, cannot re-register as %s", f.name, f.kind, kind)
	}
	if f.help != help {
		return fmt.Errorf("metric %q already registered with different help text", f.name)
	}
	if !equalStrings(f.labelNames, labelNames) {
		return fmt.Errorf("metric %q already registered with different label names", f.name)
	}
	if !equalFloats(f.buckets, buckets) {
		return fmt.Errorf("metric %q already registered with different buckets", f.name)
	}
	return nil
}

// sortedFamilies returns all families ordered by metric name for
// deterministic exposition.
func (r *Registry) sortedFamilies() []*family {
	r.mu.Lock()
	fams := make([]*family, 0, len(r.families))
	for _, f := range r.families {
		fams = append(fams, f)
	}
	r.mu.Unlock()

	sort.Slice(fams, func(i, j int) bool { return fams[i].name < fams[j].name })
	return fams
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// seriesKey builds the lookup key for a label-value combination. The key is
// the values joined with an unprintable separator; label names are fixed per
// vector so positional values are already canonical.
func seriesKey(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, "\xff")
}
