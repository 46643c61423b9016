package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// staticRoutes are the routes the server exposes. Anything else is collapsed
// to a single label to prevent cardinality explosion in metrics.
var staticRoutes = map[string]bool{
	"/":         true,
	"/samples":  true,
	"/train":    true,
	"/weights":  true,
	"/sessions": true,
	"/health":   true,
	"/ready":    true,
	"/metrics":  true,
}

// normalizePath maps request paths to route patterns for metric labels.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}
	return "/other"
}

// HTTPMetrics is a middleware that records request count, duration, and
// response size per method/path/status.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(rw.statusCode)
			elapsed := time.Since(start).Seconds()

			metrics.ObserveHTTPRequest(r.Method, path, status, elapsed, rw.size)
		})
	}
}
