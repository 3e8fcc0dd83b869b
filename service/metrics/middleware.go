package metrics

import (
	"net/http"
	"strings"
	"time"
)

// unmatchedRoute labels requests that no ServeMux pattern matched, so stray
// paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// HTTPMetricsMiddleware records request count and latency for every request
// served by next. Wrap a *http.ServeMux with it: requests are labelled with the
// path of the pattern that matched (e.g. "/api/v1/markets/{address}"), never
// with the raw URL. m may be nil, in which case next is returned as is.
func HTTPMetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer Timer(time.Now(), func(duration float64) {
				m.RecordHTTPRequest(routeLabel(r.Pattern), r.Method, rec.status(), duration)
			})()
			next.ServeHTTP(rec, r)
		})
	}
}

// routeLabel strips the method from a ServeMux pattern ("GET /health" -> "/health").
func routeLabel(pattern string) string {
	if pattern == "" {
		return unmatchedRoute
	}
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		return pattern[i+1:]
	}
	return pattern
}

// statusRecorder remembers the first status code written.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	if w.code == 0 {
		w.code = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

// Timer returns a func that reports the time elapsed since start to recordFunc.
//
//	defer Timer(time.Now(), func(duration float64) {
//	    m.RecordSomething(duration)
//	})()
func Timer(start time.Time, recordFunc func(float64)) func() {
	return func() {
		recordFunc(time.Since(start).Seconds())
	}
}
