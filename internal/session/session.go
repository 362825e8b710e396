package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie carrying the signed session token
const CookieName = "billed_session"

// TypeEmployee is the only role served by the employee screens
const TypeEmployee = "Employee"

// ErrNoSession is returned when a request carries no usable session
var ErrNoSession = errors.New("no session")

// User is the authenticated user of a session
type User struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

// Context gives components read access to the current user
type Context interface {
	CurrentUser() (User, bool)
}

// Static is a Context holding a fixed user; the zero value has no user
type Static struct {
	User *User
}

// CurrentUser returns the held user, if any
func (s Static) CurrentUser() (User, bool) {
	if s.User == nil {
		return User{}, false
	}
	return *s.User, true
}

// For returns a Context for the given user
func For(u User) Static {
	return Static{User: &u}
}

type claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Manager issues and reads session cookies signed with HS256
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager; ttl <= 0 means 24 hours
func NewManager(secret []byte, ttl time.Duration) (*Manager, error) {
	return NewManagerWithClock(secret, ttl, time.Now)
}

// NewManagerWithClock creates a Manager reading the time from now, for testing
func NewManagerWithClock(secret []byte, ttl time.Duration, now func() time.Time) (*Manager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: secret, ttl: ttl, now: now}, nil
}

// Issue signs a token for u
func (m *Manager) Issue(u User) (string, error) {
	if strings.TrimSpace(u.Email) == "" {
		return "", fmt.Errorf("issuing session: email is required")
	}
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Type: u.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its user
func (m *Manager) Parse(token string) (User, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return User{}, fmt.Errorf("parsing session: %w", err)
	}
	if c.Subject == "" {
		return User{}, ErrNoSession
	}
	return User{Type: c.Type, Email: c.Subject}, nil
}

// FromRequest builds the Context for a request; a missing or invalid cookie yields an empty Context
func (m *Manager) FromRequest(r *http.Request) Static {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return Static{}
	}
	u, err := m.Parse(cookie.Value)
	if err != nil {
		return Static{}
	}
	return For(u)
}

// SetCookie writes the session cookie for u
func (m *Manager) SetCookie(w http.ResponseWriter, u User) error {
	token, err := m.Issue(u)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie removes the session cookie
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
