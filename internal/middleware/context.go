package middleware

import (
	"context"
	"net/http"
)

// context keys are unexported to avoid collisions
type ctxKey string

const (
	ctxKeyIsHTMX  ctxKey = "is_htmx"
	ctxKeySession ctxKey = "session"
)

// hxRequest is sent by htmx on every request it issues.
const hxRequest = "HX-Request"

// HTMX records in the context whether htmx issued the request. Pages and fragments are
// served from the same URLs, so responses vary on that header.
func HTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", hxRequest)
		next.ServeHTTP(w, r.WithContext(WithHTMX(r.Context(), r.Header.Get(hxRequest) == "true")))
	})
}

// WithHTMX marks request as HTMX
func WithHTMX(ctx context.Context, is bool) context.Context {
	return context.WithValue(ctx, ctxKeyIsHTMX, is)
}

// IsHTMX returns whether this is an htmx request
func IsHTMX(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyIsHTMX).(bool)
	return v
}

// WithSession stores visitor session data in context.
func WithSession(ctx context.Context, s *SessionData) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SessionFromContext returns the visitor session, or an empty one when the Session
// middleware did not run.
func SessionFromContext(ctx context.Context) *SessionData {
	if v, ok := ctx.Value(ctxKeySession).(*SessionData); ok && v != nil {
		return v
	}
	return &SessionData{}
}
