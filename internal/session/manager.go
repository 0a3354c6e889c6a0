package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const CookieName = "sessionId"

// DefaultTTL matches the one hour cookie lifetime of the frontend contract.
const DefaultTTL = time.Hour

// Manager ties sessions to HTTP via a signed cookie carrying the session id.
// The cookie value is "<id>.<base64url hmac-sha256>", so a tampered id fails
// verification and the request gets a fresh session instead. All cookie
// handling lives here; the stream controller only ever sees *Session.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewManager(store Store, secret string, secure bool) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    DefaultTTL,
		secure: secure,
	}
}

// Request resolves the session for an incoming request, minting a new id when
// the cookie is absent or its signature does not verify.
func (m *Manager) Request(r *http.Request) *Session {
	c, err := r.Cookie(CookieName)
	if err == nil {
		if id, ok := m.verify(c.Value); ok {
			return newSession(id, m.store, m.ttl, false)
		}
	}
	return newSession(uuid.NewString(), m.store, m.ttl, true)
}

// WriteCookie attaches the signed session cookie to the response. SameSite
// None + Secure because the SSE client is a cross-origin browser app that
// must send this cookie with credentialed requests.
func (m *Manager) WriteCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(s.ID),
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteNoneMode,
	})
}

func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return id + "." + sig
}

func (m *Manager) verify(value string) (string, bool) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 {
		return "", false
	}
	id, sig := value[:idx], value[idx+1:]
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", false
	}
	return id, true
}
