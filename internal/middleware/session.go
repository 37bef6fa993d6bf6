package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// SessionCookieName names the signed visitor cookie.
const SessionCookieName = "SIGMAR_WEB_SESSION"

const sessionCookieTTL = 30 * 24 * time.Hour

// SessionData is the payload of the signed visitor cookie. The contact form state lives
// server side, keyed by ID.
type SessionData struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	// internal dirty flag; not serialized
	dirty bool
}

// MarkDirty stamps UpdatedAt and makes the middleware rewrite the cookie.
func (s *SessionData) MarkDirty() { s.dirty = true; s.UpdatedAt = time.Now().UTC() }

// Sessions signs and verifies the visitor cookie.
type Sessions struct {
	key    []byte
	secure bool
	now    func() time.Time
}

// NewSessions builds the cookie codec. An empty key yields a process-ephemeral one, which
// is only suitable for local development.
func NewSessions(signingKey string, secure bool, logger *zap.Logger) *Sessions {
	key := []byte(signingKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte("insecure-dev-key-please-set-SIGMAR_WEB_SESSION_SIGNING_KEY")
		}
		if logger != nil {
			logger.Warn("session: using ephemeral signing key; set SIGMAR_WEB_SESSION_SIGNING_KEY for production")
		}
	}
	return &Sessions{key: key, secure: secure, now: func() time.Time { return time.Now().UTC() }}
}

// Middleware loads or initializes the session and stores it in request context.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd, fromCookie := s.read(r)
		if sd.ID == "" {
			now := s.now()
			sd.ID = ulid.Make().String()
			sd.CreatedAt = now
			sd.UpdatedAt = now
			sd.dirty = true
		}
		rw := NewResponseRecorder(w)
		rw.SetBeforeWrite(func(w http.ResponseWriter) {
			if sd.dirty || !fromCookie {
				s.write(w, sd)
			}
		})
		next.ServeHTTP(rw, r.WithContext(WithSession(r.Context(), sd)))
		// nothing written (e.g. HEAD with no body): persist now
		if !rw.Written() && (sd.dirty || !fromCookie) {
			s.write(w, sd)
		}
	})
}

// Encode returns the signed cookie value for sd.
func (s *Sessions) Encode(sd *SessionData) string {
	b, _ := json.Marshal(sd)
	mac := hmac.New(sha256.New, s.key)
	mac.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Decode verifies and parses a cookie value.
func (s *Sessions) Decode(value string) (*SessionData, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return &SessionData{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return &SessionData{}, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return &SessionData{}, false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := json.Unmarshal(payload, &sd); err != nil || sd.ID == "" {
		return &SessionData{}, false
	}
	return &sd, true
}

func (s *Sessions) read(r *http.Request) (*SessionData, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	return s.Decode(c.Value)
}

func (s *Sessions) write(w http.ResponseWriter, sd *SessionData) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.Encode(sd),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.now().Add(sessionCookieTTL),
	})
	sd.dirty = false
}
