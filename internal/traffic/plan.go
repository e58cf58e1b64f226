package traffic

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Mode selects the traffic shape of a load run.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeError  Mode = "error"
	ModeBurst  Mode = "burst"
	ModeMixed  Mode = "mixed"
)

// ParseMode converts a user-supplied mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNormal:
		return ModeNormal, nil
	case ModeError:
		return ModeError, nil
	case ModeBurst:
		return ModeBurst, nil
	case ModeMixed:
		return ModeMixed, nil
	default:
		return "", fmt.Errorf("mode %q is not supported (normal, error, burst, mixed)", s)
	}
}

// Target endpoints on the observed service.
const (
	EndpointIndex    = "/"
	EndpointHealth   = "/health"
	EndpointSimulate = "/simulate"
	EndpointConfig   = "/config"
	EndpointError    = "/error"
)

// Descriptor is one planned request. Immutable once produced.
type Descriptor struct {
	Endpoint   string
	Offset     time.Duration
	ForceError bool
}

// Options configure plan generation.
type Options struct {
	Mode     Mode
	Duration time.Duration
	Rate     float64 // requests per second

	// ErrorRatio is the fraction of error-mode descriptors that target the
	// forced-error endpoint. Defaults to 0.7.
	ErrorRatio float64

	// BurstFactor scales the rate up during spike windows and down during
	// quiet windows in burst mode. Defaults to 5.
	BurstFactor float64

	// QuietWindow and SpikeWindow set the burst-mode cadence.
	// Default 2s quiet, 1s spike.
	QuietWindow time.Duration
	SpikeWindow time.Duration

	// Rand drives endpoint selection. Inject a seeded source for
	// deterministic plans; defaults to a time-seeded source.
	Rand *rand.Rand
}

func (o *Options) normalize() {
	if o.ErrorRatio <= 0 || o.ErrorRatio > 1 {
		o.ErrorRatio = 0.7
	}
	if o.BurstFactor <= 1 {
		o.BurstFactor = 5
	}
	if o.QuietWindow <= 0 {
		o.QuietWindow = 2 * time.Second
	}
	if o.SpikeWindow <= 0 {
		o.SpikeWindow = time.Second
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

type endpointWeight struct {
	endpoint string
	weight   int
}

// Steady-state endpoint mix: mostly workload simulation, frequent health
// probes, occasional index and config reads.
var normalWeights = []endpointWeight{
	{EndpointSimulate, 4},
	{EndpointHealth, 3},
	{EndpointIndex, 2},
	{EndpointConfig, 1},
}

var burstWeights = []endpointWeight{
	{EndpointIndex, 1},
	{EndpointHealth, 1},
	{EndpointSimulate, 1},
}

// Plan produces the full descriptor sequence for a run. A zero rate or
// zero duration yields an empty plan, not an error. Offsets are
// monotonically non-decreasing regardless of mode.
func Plan(opts Options) ([]Descriptor, error) {
	opts.normalize()

	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.Rate < 0 {
		return nil, fmt.Errorf("rate must be >= 0, got %v", opts.Rate)
	}
	if opts.Duration < 0 {
		return nil, fmt.Errorf("duration must be >= 0, got %v", opts.Duration)
	}
	if opts.Rate == 0 || opts.Duration == 0 {
		return []Descriptor{}, nil
	}

	switch opts.Mode {
	case ModeNormal:
		return planWindow(nil, opts, ModeNormal, 0, opts.Duration), nil
	case ModeError:
		return planWindow(nil, opts, ModeError, 0, opts.Duration), nil
	case ModeBurst:
		return planWindow(nil, opts, ModeBurst, 0, opts.Duration), nil
	case ModeMixed:
		return planMixed(opts), nil
	}
	return nil, fmt.Errorf("mode %q is not supported", opts.Mode)
}

// planWindow appends descriptors for one sub-window of the run.
func planWindow(ds []Descriptor, opts Options, mode Mode, start, length time.Duration) []Descriptor {
	switch mode {
	case ModeNormal:
		return appendUniform(ds, start, length, opts.Rate, func(off time.Duration) Descriptor {
			return Descriptor{Endpoint: pickWeighted(opts.Rand, normalWeights), Offset: off}
		})
	case ModeError:
		return appendUniform(ds, start, length, opts.Rate, func(off time.Duration) Descriptor {
			if opts.Rand.Float64() < opts.ErrorRatio {
				return Descriptor{Endpoint: EndpointError, Offset: off, ForceError: true}
			}
			return Descriptor{Endpoint: EndpointSimulate, Offset: off}
		})
	case ModeBurst:
		return appendBurst(ds, opts, start, length)
	}
	return ds
}

// appendUniform spaces descriptors evenly at the given rate across
// [start, start+length).
func appendUniform(ds []Descriptor, start, length time.Duration, rate float64, pick func(time.Duration) Descriptor) []Descriptor {
	if rate <= 0 || length <= 0 {
		return ds
	}
	interval := time.Duration(float64(time.Second) / rate)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	for off := start; off < start+length; off += interval {
		ds = append(ds, pick(off))
	}
	return ds
}

// appendBurst alternates quiet windows at rate/factor with spike windows at
// rate*factor, modeling traffic shocks.
func appendBurst(ds []Descriptor, opts Options, start, length time.Duration) []Descriptor {
	quietRate := opts.Rate / opts.BurstFactor
	spikeRate := opts.Rate * opts.BurstFactor

	end := start + length
	at := start
	spike := false
	for at < end {
		window := opts.QuietWindow
		rate := quietRate
		if spike {
			window = opts.SpikeWindow
			rate = spikeRate
		}
		if at+window > end {
			window = end - at
		}
		ds = appendUniform(ds, at, window, rate, func(off time.Duration) Descriptor {
			return Descriptor{Endpoint: pickWeighted(opts.Rand, burstWeights), Offset: off}
		})
		at += window
		spike = !spike
	}
	return ds
}

// planMixed partitions the duration into sequential sub-windows so one run
// exercises every pattern: steady, error-heavy, bursty, then steady again.
func planMixed(opts Options) []Descriptor {
	fractions := []struct {
		mode Mode
		frac float64
	}{
		{ModeNormal, 0.25},
		{ModeError, 0.17},
		{ModeBurst, 0.08},
		{ModeNormal, 0.50},
	}

	var ds []Descriptor
	at := time.Duration(0)
	for i, part := range fractions {
		length := time.Duration(float64(opts.Duration) * part.frac)
		if i == len(fractions)-1 {
			length = opts.Duration - at
		}
		if length <= 0 {
			continue
		}
		ds = planWindow(ds, opts, part.mode, at, length)
		at += length
	}
	return ds
}

func pickWeighted(rnd *rand.Rand, weights []endpointWeight) string {
	total := 0
	for _, w := range weights {
		total += w.weight
	}
	n := rnd.Intn(total)
	for _, w := range weights {
		n -= w.weight
		if n < 0 {
			return w.endpoint
		}
	}
	return weights[len(weights)-1].endpoint
}
