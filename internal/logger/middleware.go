package logger

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/diewo77/go-crm/httpx"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// Middleware assigns a request id and writes one access log line per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(WithRequestID(r.Context(), id))

		rec := httpx.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		entry := FromContext(r.Context()).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.Status,
			"bytes":    rec.Bytes,
			"duration": time.Since(start).String(),
			"ip":       r.RemoteAddr,
		})
		switch {
		case rec.Status >= 500:
			entry.Error("request")
		case rec.Status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	})
}

// Recover turns a handler panic into a 500 JSON response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				FromContext(r.Context()).WithFields(logrus.Fields{
					"panic": p,
					"stack": string(debug.Stack()),
				}).Error("handler panic")
				httpx.JSONError(w, http.StatusInternalServerError, "Internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
