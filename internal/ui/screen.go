// Package ui renders the employee screens and routes between them.
package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zombor/billed/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/app.css
var appCSS []byte

var views = template.Must(template.New("views").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
}).ParseFS(templatesFS, "templates/*.html"))

// Screen is the page a request renders; components draw their view into it
type Screen struct {
	session session.Context

	mu    sync.Mutex
	path  string
	title string
	body  template.HTML
}

// NewScreen creates an empty screen for the user of sess
func NewScreen(sess session.Context) *Screen {
	return &Screen{session: sess}
}

// show replaces the screen content with the named view
func (s *Screen) show(dest Destination, title, view string, data interface{}) error {
	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, view, data); err != nil {
		return fmt.Errorf("rendering %s: %w", view, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = dest.Path()
	s.title = title
	s.body = template.HTML(buf.String())
	return nil
}

// Path returns the path of the destination currently shown
func (s *Screen) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

type layoutView struct {
	Title       string
	Path        string
	Body        template.HTML
	User        *session.User
	BillsPath   string
	NewBillPath string
}

// Render writes the full HTML document
func (s *Screen) Render(w io.Writer) error {
	s.mu.Lock()
	data := layoutView{
		Title:       s.title,
		Path:        s.path,
		Body:        s.body,
		BillsPath:   Bills.Path(),
		NewBillPath: NewBill.Path(),
	}
	s.mu.Unlock()

	if s.session != nil {
		if u, ok := s.session.CurrentUser(); ok {
			data.User = &u
		}
	}
	if err := views.ExecuteTemplate(w, "layout", data); err != nil {
		return fmt.Errorf("rendering layout: %w", err)
	}
	return nil
}

// HTML returns the full document as a string
func (s *Screen) HTML() string {
	var b strings.Builder
	if err := s.Render(&b); err != nil {
		return ""
	}
	return b.String()
}
