package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// statusRecorder captures the response status so the middleware can label
// the request counter. An unwritten status counts as 200, matching
// net/http's implicit WriteHeader.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusRecorder) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.written {
		w.status = http.StatusOK
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// instrument wraps every route with the in-flight gauge, the request
// counter, the error counter and the latency histogram. The gauge is
// incremented before the handler runs and decremented on every exit path,
// panics included.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := routeTemplate(r)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		s.inst.inFlight.WithLabelValues().Inc()
		defer func() {
			if p := recover(); p != nil {
				if !rec.written {
					http.Error(rec, "internal server error", http.StatusInternalServerError)
				}
				s.log.Error("handler panic",
					zap.String("endpoint", endpoint),
					zap.Any("panic", p))
			}
			s.record(r.Method, endpoint, rec.status, time.Since(start))
			s.inst.inFlight.WithLabelValues().Dec()
		}()

		next.ServeHTTP(rec, r)
	})
}

// record updates the per-request metrics. A fault in metric bookkeeping
// must never change the response already sent, so it is isolated behind
// its own recover.
func (s *Server) record(method, endpoint string, status int, elapsed time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("metric update failed", zap.Any("panic", p))
		}
	}()

	s.inst.requests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	if status >= http.StatusBadRequest {
		s.inst.errors.WithLabelValues(endpoint).Inc()
	}
	s.inst.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())

	s.log.Debug("request handled",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", status),
		zap.Duration("duration", elapsed))
}

// routeTemplate labels metrics with the matched route pattern rather than
// the raw URL so series cardinality stays bounded.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
