package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zombor/billed/internal/session"
)

// Destination identifies a screen of the application
type Destination int

const (
	Login Destination = iota
	Bills
	NewBill
)

var destinationPaths = map[Destination]string{
	Login:   "/",
	Bills:   "/employee/bills",
	NewBill: "/employee/bill/new",
}

// Path returns the URL path of the destination
func (d Destination) Path() string {
	return destinationPaths[d]
}

func (d Destination) String() string {
	switch d {
	case Login:
		return "Login"
	case Bills:
		return "Bills"
	case NewBill:
		return "NewBill"
	default:
		return fmt.Sprintf("Destination(%d)", int(d))
	}
}

// DestinationFor maps a URL path back to its destination
func DestinationFor(path string) (Destination, bool) {
	for d, p := range destinationPaths {
		if p == path {
			return d, true
		}
	}
	return 0, false
}

// ErrUnknownDestination is returned when no component is registered for a destination
var ErrUnknownDestination = errors.New("unknown destination")

// Navigator moves the user to another screen
type Navigator interface {
	Navigate(ctx context.Context, dest Destination) error
}

// Component is a screen mounted by the Router.
// Unmount must be safe to call while a store call of the component is in flight.
type Component interface {
	Mount(ctx context.Context) error
	Unmount()
}

// Factory builds the component rendering a destination onto screen
type Factory func(screen *Screen) Component

// Router mounts one component at a time on a Screen
type Router struct {
	screen *Screen

	mu        sync.Mutex
	factories map[Destination]Factory
	current   Component
	dest      Destination
	history   []Destination
}

// NewRouter creates a Router drawing on screen
func NewRouter(screen *Screen) *Router {
	return &Router{
		screen:    screen,
		factories: make(map[Destination]Factory),
	}
}

// Register sets the component factory for dest
func (r *Router) Register(dest Destination, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[dest] = f
}

// Navigate unmounts the current component and mounts the one registered for dest.
// A component refusing to mount for lack of a session sends the user to Login.
func (r *Router) Navigate(ctx context.Context, dest Destination) error {
	r.mu.Lock()
	f, ok := r.factories[dest]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDestination, dest)
	}
	prev := r.current
	next := f(r.screen)
	r.current = next
	r.dest = dest
	r.history = append(r.history, dest)
	r.mu.Unlock()

	if prev != nil {
		prev.Unmount()
	}

	if err := next.Mount(ctx); err != nil {
		if errors.Is(err, session.ErrNoSession) && dest != Login {
			return r.Navigate(ctx, Login)
		}
		return fmt.Errorf("mounting %s: %w", dest, err)
	}
	return nil
}

// Current returns the mounted component and its destination
func (r *Router) Current() (Destination, Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dest, r.current
}

// History returns every destination navigated to, oldest first
func (r *Router) History() []Destination {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Destination, len(r.history))
	copy(out, r.history)
	return out
}

// Close unmounts the current component
func (r *Router) Close() {
	r.mu.Lock()
	current := r.current
	r.current = nil
	r.mu.Unlock()
	if current != nil {
		current.Unmount()
	}
}

// Redirect is a Navigator that records where a component wants to go
// instead of mounting it; the HTTP server turns it into a redirect.
type Redirect struct {
	mu   sync.Mutex
	dest *Destination
}

// Navigate records dest
func (r *Redirect) Navigate(_ context.Context, dest Destination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dest = &dest
	return nil
}

// Destination returns the last recorded destination
func (r *Redirect) Destination() (Destination, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dest == nil {
		return 0, false
	}
	return *r.dest, true
}
