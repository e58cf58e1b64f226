package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// PrintReport writes the human-readable run summary.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "\n--- Load Test Summary ---")
	fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	fmt.Fprintf(w, "Total Requests:    %d\n", r.Total)
	fmt.Fprintf(w, "Successful:        %d (%.1f%%)\n", r.Successes, share(r.Successes, r.Total))
	fmt.Fprintf(w, "Errors:            %d (%.1f%%)\n", r.Failures, share(r.Failures, r.Total))
	fmt.Fprintf(w, "Duration:          %s\n", r.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", r.RequestsPerSec)

	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", r.MinLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", r.MeanLatency)
	fmt.Fprintf(w, "  Median:          %s\n", r.MedianLatency)
	fmt.Fprintf(w, "  P95:             %s\n", r.P95Latency)
	fmt.Fprintf(w, "  Max:             %s\n", r.MaxLatency)
	if r.MaxScheduleLagMs > 0 {
		fmt.Fprintf(w, "  Max Sched Lag:   %.1fms\n", r.MaxScheduleLagMs)
	}

	if len(r.Classes) > 0 {
		fmt.Fprintln(w, "\nOutcome Classes:")
		classes := make([]string, 0, len(r.Classes))
		for class := range r.Classes {
			classes = append(classes, class)
		}
		sort.Strings(classes)
		for _, class := range classes {
			fmt.Fprintf(w, "  %s: %d\n", class, r.Classes[class])
		}
	}

	if len(r.Endpoints) > 0 {
		fmt.Fprintln(w, "\nEndpoint Breakdown:")
		names := make([]string, 0, len(r.Endpoints))
		for name := range r.Endpoints {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if r.Endpoints[names[i]].Total == r.Endpoints[names[j]].Total {
				return names[i] < names[j]
			}
			return r.Endpoints[names[i]].Total > r.Endpoints[names[j]].Total
		})
		for _, name := range names {
			ep := r.Endpoints[name]
			fmt.Fprintf(w, "  %s: %d requests, %.1f%% success\n",
				name, ep.Total, share(ep.Successes, ep.Total))
		}
	}
}

// PrintJSONReport writes the report as indented JSON.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func share(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
