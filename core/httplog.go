package core

import (
	"net/http"
	"time"
)

// accessLog logs method, path, and latency for every request, in the
// style of the wallet server's request logger.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Infof("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}
