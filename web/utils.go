package web

import (
	"log"
	"net/http"
	"time"
)

// statusWriter remembers the status code a handler sent so the
// request log can report it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// NilHandler answers with an empty 200, used for favicon requests.
func NilHandler(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte{})
}

// Logger wraps handler with per-request logging when verbose is set.
func Logger(handler http.Handler, name string, verbose bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		// handlers that never call WriteHeader implicitly answer 200
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(sw, r)
		if verbose {
			log.Printf("%s- %s %s> (%d) @%s: - agent:%s - %s",
				name, r.Method, r.RequestURI, sw.status,
				r.Header.Get("X-FORWARDED-FOR"), r.Header.Get("USER-AGENT"), time.Since(t0))
		}
	})
}
