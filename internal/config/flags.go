package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loadgen",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target and traffic shape
	flags.String("target", "", "Base URL of the observer service to load")
	flags.StringP("mode", "m", "normal", "Traffic pattern: normal, error, burst or mixed")
	flags.DurationP("duration", "d", 30*time.Second, "How long the generated plan runs (e.g. 30s, 2m)")
	flags.IntP("rate", "r", 10, "Planned requests per second")
	flags.Float64("error-ratio", 0.7, "Fraction of error-mode requests that target the failing endpoint")
	flags.Float64("burst-factor", 5, "Spike multiplier for burst mode (quiet windows run at rate/factor)")
	flags.Int64("seed", 0, "Seed for endpoint selection (0 means time-based)")

	// Dispatch control
	flags.IntP("concurrency", "c", 10, "Maximum requests in flight")
	flags.Duration("timeout", 10*time.Second, "Per-request timeout")
	flags.Int("rate-cap", 0, "Hard requests-per-second ceiling at dispatch time (0 means uncapped)")

	// Output
	flags.Bool("json-output", false, "Emit the final report as JSON")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("otlp-endpoint", "", "OTLP endpoint for trace export (empty disables tracing)")
	flags.String("otlp-protocol", "grpc", "OTLP transport: grpc or http")
	flags.Bool("otlp-insecure", false, "Skip TLS for the OTLP connection")
	flags.Float64("trace-sample-rate", 1.0, "Fraction of requests to trace")
	flags.String("service-name", "", "Service name reported on exported spans")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.Target = strings.TrimSpace(val)
	}
	if fs.Changed("mode") {
		val, err := fs.GetString("mode")
		if err != nil {
			return err
		}
		cfg.Mode = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("error-ratio") {
		val, err := fs.GetFloat64("error-ratio")
		if err != nil {
			return err
		}
		cfg.ErrorRatio = val
	}
	if fs.Changed("burst-factor") {
		val, err := fs.GetFloat64("burst-factor")
		if err != nil {
			return err
		}
		cfg.BurstFactor = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("rate-cap") {
		val, err := fs.GetInt("rate-cap")
		if err != nil {
			return err
		}
		cfg.RateCap = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("otlp-endpoint") {
		val, err := fs.GetString("otlp-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("otlp-protocol") {
		val, err := fs.GetString("otlp-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("otlp-insecure") {
		val, err := fs.GetBool("otlp-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("service-name") {
		val, err := fs.GetString("service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	return nil
}
