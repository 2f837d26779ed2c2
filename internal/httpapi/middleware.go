package httpapi

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so the first middleware listed runs first.
func Chain(h http.Handler, m ...Middleware) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

type ctxKey struct{}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// RequestID honours a caller supplied X-Request-ID and mints one otherwise.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// Recover turns a handler panic into a 500 APIError and logs the stack.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("level=error msg=\"panic\" request_id=%s method=%s path=%s err=%v\n%s",
				RequestIDFrom(r.Context()), r.Method, r.URL.Path, rec, debug.Stack())
			WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// recorder captures status and size for AccessLog.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *recorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Flush lets SSE responses stream through the recorder.
func (rw *recorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &recorder{ResponseWriter: w}
		next.ServeHTTP(rw, r)

		level := "info"
		switch {
		case rw.status >= 500:
			level = "error"
		case rw.status >= 400:
			level = "warn"
		}
		log.Printf("level=%s msg=\"http\" request_id=%s method=%s path=%s status=%d bytes=%d dur_ms=%d",
			level, RequestIDFrom(r.Context()), r.Method, r.URL.Path, rw.status, rw.bytes,
			time.Since(start).Milliseconds())
	})
}

// Cors grants cross-origin access to the listed origins only. Browser
// requests from any other origin get 403, preflight included. Requests
// without an Origin header (curl, the desktop shell) pass through.
func Cors(allowed []string) Middleware {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(o), "/"))] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			norm := strings.ToLower(strings.TrimSuffix(origin, "/"))
			if !set[norm] && norm != "http://"+strings.ToLower(r.Host) {
				log.Printf("level=warn msg=\"origin refused\" request_id=%s origin=%q method=%s path=%s",
					RequestIDFrom(r.Context()), origin, r.Method, r.URL.Path)
				WriteError(w, r, http.StatusForbidden, "origin_forbidden", "origin not allowed")
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Shutdown-Token")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Restart-Required")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
