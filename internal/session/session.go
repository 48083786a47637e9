package session

import (
	"context"
	"net/http"
	"time"

	"ShareDrop/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	// CookieName is the browser cookie carrying the signed session id.
	CookieName = "sharedrop_session"

	// ContextKey is where the middleware stores the session id for handlers.
	ContextKey = "session_id"
)

// State is what a visitor has proven so far: which uploads they unlocked
// and, for encrypted ones, the passphrase needed to decipher their files.
// It lives in the cache under the session id, never in a cookie.
type State struct {
	Unlocked    []string          `json:"unlocked,omitempty"`
	Passphrases map[string]string `json:"passphrases,omitempty"`
}

func (s *State) unlocked(slug string) bool {
	for _, u := range s.Unlocked {
		if u == slug {
			return true
		}
	}
	return false
}

// Manager issues session cookies and tracks per-session download
// authorization state.
type Manager struct {
	cache  utils.Cache
	secret []byte
	ttl    time.Duration
}

// NewManager creates a session manager backed by the given cache.
func NewManager(cache utils.Cache, secret string, ttl time.Duration) *Manager {
	return &Manager{
		cache:  cache,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func (m *Manager) sign(sid string) (string, error) {
	claims := sessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) parse(raw string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

// Middleware ensures every request carries a valid session cookie,
// minting a fresh one when the cookie is missing or no longer verifies.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := ""
		if raw, err := c.Cookie(CookieName); err == nil {
			if parsed, parseErr := m.parse(raw); parseErr == nil && parsed != "" {
				sid = parsed
			}
		}
		if sid == "" {
			sid = uuid.NewString()
			signed, err := m.sign(sid)
			if err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.SetCookie(CookieName, signed, int(m.ttl.Seconds()), "/", "", false, true)
		}
		c.Set(ContextKey, sid)
		c.Next()
	}
}

// ID extracts the session id placed by Middleware.
func ID(c *gin.Context) string {
	sid, _ := c.MustGet(ContextKey).(string)
	return sid
}

func stateKey(sid string) string {
	return "session:" + sid
}

func (m *Manager) load(ctx context.Context, sid string) *State {
	var state State
	if err := m.cache.Get(ctx, stateKey(sid), &state); err != nil {
		return &State{}
	}
	return &state
}

func (m *Manager) save(ctx context.Context, sid string, state *State) error {
	return m.cache.Set(ctx, stateKey(sid), state, m.ttl)
}

// Unlock records that this session passed the password gate of an upload.
// The passphrase is retained only for encrypted uploads, where the cipher
// needs it back at download time.
func (m *Manager) Unlock(ctx context.Context, sid, slug, passphrase string, crypt bool) error {
	state := m.load(ctx, sid)
	if !state.unlocked(slug) {
		state.Unlocked = append(state.Unlocked, slug)
	}
	if crypt {
		if state.Passphrases == nil {
			state.Passphrases = make(map[string]string)
		}
		state.Passphrases[slug] = passphrase
	}
	return m.save(ctx, sid, state)
}

// IsUnlocked reports whether this session already unlocked the upload.
func (m *Manager) IsUnlocked(ctx context.Context, sid, slug string) bool {
	return m.load(ctx, sid).unlocked(slug)
}

// Passphrase returns the retained passphrase for an encrypted upload.
func (m *Manager) Passphrase(ctx context.Context, sid, slug string) (string, bool) {
	state := m.load(ctx, sid)
	pass, ok := state.Passphrases[slug]
	return pass, ok
}

// RememberUpload tags the session as the creator of an upload so the
// success page can show the share link without re-authentication.
func (m *Manager) RememberUpload(ctx context.Context, sid, slug string) error {
	return m.cache.Set(ctx, "session:"+sid+":upload", slug, m.ttl)
}

// LastUpload returns the slug remembered by RememberUpload.
func (m *Manager) LastUpload(ctx context.Context, sid string) (string, bool) {
	var slug string
	if err := m.cache.Get(ctx, "session:"+sid+":upload", &slug); err != nil || slug == "" {
		return "", false
	}
	return slug, true
}
