package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/observerlab/observer/internal/traffic"
)

// Config holds every setting the load generator accepts, merged from an
// optional config file and command-line flags.
type Config struct {
	Target      string        `mapstructure:"target"`
	Mode        string        `mapstructure:"mode"`
	Duration    time.Duration `mapstructure:"duration"`
	Rate        int           `mapstructure:"rate"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ErrorRatio  float64       `mapstructure:"error_ratio"`
	BurstFactor float64       `mapstructure:"burst_factor"`
	RateCap     int           `mapstructure:"rate_cap"`
	Seed        int64         `mapstructure:"seed"`
	JSONOutput  bool          `mapstructure:"json_output"`
	LogErrors   bool          `mapstructure:"log_errors"`
	ConfigFile  string        `mapstructure:"-"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// TracingConfig controls optional OTLP trace export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether an OTLP endpoint is configured, directly or via
// the standard environment variable.
func (t TracingConfig) Enabled() bool {
	return t.Endpoint != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ValidationError collects every configuration problem found in one pass.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns the individual problems.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration, collecting all problems rather than
// stopping at the first.
func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.Target)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q is not a valid URL", target))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("target scheme %q is not supported, use http or https", u.Scheme))
	}

	if _, err := traffic.ParseMode(c.Mode); err != nil {
		issues = append(issues, err.Error())
	}

	if c.Duration < 0 {
		issues = append(issues, "duration cannot be negative")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate cannot be negative")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be at least 1")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout cannot be negative")
	}
	if c.ErrorRatio < 0 || c.ErrorRatio > 1 {
		issues = append(issues, fmt.Sprintf("error ratio must be within [0,1], got %g", c.ErrorRatio))
	}
	if c.BurstFactor < 1 {
		issues = append(issues, fmt.Sprintf("burst factor must be at least 1, got %g", c.BurstFactor))
	}
	if c.RateCap < 0 {
		issues = append(issues, "rate cap cannot be negative")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample rate must be within [0,1], got %g", c.Tracing.SampleRate))
	}

	if c.Rate > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: high rate configured (%d RPS); make sure you are authorized to load the target.\n", c.Rate)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
