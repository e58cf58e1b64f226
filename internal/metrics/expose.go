package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// ContentType is the exposition content type consumed by scraping
// collectors.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// WritePrometheus renders every registered series in the Prometheus text
// exposition format. Output is deterministic: families are ordered by
// metric name, series by label signature, labels by label name. Series
// values are copied one at a time so concurrent writers are never blocked
// for longer than a single copy.
func (r *Registry) WritePrometheus(w io.Writer) error {
	for _, fam := range r.sortedFamilies() {
		if fam.help != "" {
			if _, err := fmt.Fprintf(w, "# HELP %s %s\n", fam.name, escapeHelp(fam.help)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "# TYPE %s %s\n", fam.name, fam.kind); err != nil {
			return err
		}
		if err := fam.writeSamples(w); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns an http.Handler serving the exposition, suitable for
// mounting at /metrics.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_ = r.WritePrometheus(w)
	})
}

func (f *family) writeSamples(w io.Writer) error {
	switch vec := f.vec.(type) {
	case *CounterVec:
		for _, key := range vec.sortedKeys() {
			vec.mu.RLock()
			c := vec.series[key]
			vec.mu.RUnlock()
			line := fmt.Sprintf("%s%s %s\n", f.name, renderLabels(f.labelNames, key, ""), formatFloat(c.Value()))
			if _, err := io.WriteString(w, line); err != nil {
				return err
			}
		}
	case *GaugeVec:
		for _, key := range vec.sortedKeys() {
			vec.mu.RLock()
			g := vec.series[key]
			vec.mu.RUnlock()
			line := fmt.Sprintf("%s%s %s\n", f.name, renderLabels(f.labelNames, key, ""), formatFloat(g.Value()))
			if _, err := io.WriteString(w, line); err != nil {
				return err
			}
		}
	case *HistogramVec:
		for _, key := range vec.sortedKeys() {
			vec.mu.RLock()
			h := vec.series[key]
			vec.mu.RUnlock()
			snap := h.Snapshot()
			for i, bound := range snap.Bounds {
				le := formatFloat(bound)
				line := fmt.Sprintf("%s_bucket%s %d\n", f.name, renderLabels(f.labelNames, key, le), snap.Cumulative[i])
				if _, err := io.WriteString(w, line); err != nil {
					return err
				}
			}
			infLine := fmt.Sprintf("%s_bucket%s %d\n", f.name, renderLabels(f.labelNames, key, "+Inf"), snap.Cumulative[len(snap.Cumulative)-1])
			if _, err := io.WriteString(w, infLine); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s_sum%s %s\n", f.name, renderLabels(f.labelNames, key, ""), formatFloat(snap.Sum)); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s_count%s %d\n", f.name, renderLabels(f.labelNames, key, ""), snap.Count); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *CounterVec) sortedKeys() []string {
	v.mu.RLock()
	keys := make([]string, 0, len(v.series))
	for k := range v.series {
		keys = append(keys, k)
	}
	v.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (v *GaugeVec) sortedKeys() []string {
	v.mu.RLock()
	keys := make([]string, 0, len(v.series))
	for k := range v.series {
		keys = append(keys, k)
	}
	v.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (v *HistogramVec) sortedKeys() []string {
	v.mu.RLock()
	keys := make([]string, 0, len(v.series))
	for k := range v.series {
		keys = append(keys, k)
	}
	v.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// renderLabels builds the {name="value",...} block for one series. Labels
// are canonicalized by sorting on label name; le, when present, sorts with
// the rest. An empty label set renders as nothing.
func renderLabels(names []string, key, le string) string {
	var values []string
	if key != "" {
		values = strings.Split(key, "\xff")
	}

	pairs := make([][2]string, 0, len(names)+1)
	for i, name := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		pairs = append(pairs, [2]string{name, v})
	}
	if le != "" {
		pairs = append(pairs, [2]string{"le", le})
	}
	if len(pairs) == 0 {
		return ""
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p[0])
		sb.WriteString(`="`)
		sb.WriteString(escapeLabelValue(p[1]))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

func escapeLabelValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
