package ui

import (
	"context"
	"net/mail"
	"strings"
	"sync"
)

// MsgLoginEmail is shown when the login email is unusable
const MsgLoginEmail = "Merci de saisir une adresse email valide"

type loginView struct {
	Email string
	Error string
}

// LoginPage is the employee login screen
type LoginPage struct {
	screen *Screen

	mu   sync.Mutex
	view loginView
}

// NewLoginPage creates the login page drawing on screen
func NewLoginPage(screen *Screen) *LoginPage {
	return &LoginPage{screen: screen}
}

// Mount shows the login form
func (l *LoginPage) Mount(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.screen.show(Login, "Connexion", "login", l.view)
}

// Unmount is a no-op; the login page holds no pending work
func (l *LoginPage) Unmount() {}

// Fail shows the login form again with message
func (l *LoginPage) Fail(email, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view = loginView{Email: email, Error: message}
	return l.screen.show(Login, "Connexion", "login", l.view)
}

// ParseLoginEmail returns the trimmed address, or false when it is not a plain email
func ParseLoginEmail(raw string) (string, bool) {
	email := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}
