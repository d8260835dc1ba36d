package middleware

import (
	"net/http"
	"time"
)

type infoLogger interface {
	Info(msg string, args ...any)
}

// Response writer remembering what was sent to the client
type recordingWriter struct {
	http.ResponseWriter

	status      int
	written     int64
	wroteHeader bool
}

func (w *recordingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// Let http.ResponseController reach the underlying writer (flushes while streaming)
func (w *recordingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Log every request once it is served
// Only path is logged: query may carry OAuth codes
func LoggerMiddleware(l infoLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &recordingWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			l.Info(
				"got HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"size", rw.written,
				"duration", time.Since(start),
			)
		})
	}
}
