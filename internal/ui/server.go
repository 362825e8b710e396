package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
)

// maxUploadSize bounds receipt uploads from the new bill form
const maxUploadSize = int64(20 << 20)

// StoreFactory returns the remote store acting on behalf of user
type StoreFactory func(user session.User) store.Store

// Server serves the employee screens
type Server struct {
	stores   StoreFactory
	sessions *session.Manager
	mux      *http.ServeMux
	kept     *attachments
}

// NewServer creates a new Server with its own mux
func NewServer(stores StoreFactory, sessions *session.Manager) *Server {
	return NewServerWithMux(stores, sessions, http.NewServeMux())
}

// NewServerWithMux registers the screen routes on mux, which may be shared with the API
func NewServerWithMux(stores StoreFactory, sessions *session.Manager, mux *http.ServeMux) *Server {
	s := &Server{
		stores:   stores,
		sessions: sessions,
		mux:      mux,
		kept:     newAttachments(attachmentTTL, time.Now),
	}
	s.registerRoutes()
	return s
}

// registerRoutes registers the screen routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.handleStaticCSS)
	s.mux.HandleFunc("GET /employee/bills", s.handleBills)
	s.mux.HandleFunc("GET /employee/bill/new", s.handleNewBill)
	s.mux.HandleFunc("POST /employee/bill/new", s.handleSubmitBill)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /{$}", s.handleLoginPage)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// router builds the per-request screen and router for the session of r
func (s *Server) router(r *http.Request) (*Screen, *Router) {
	sess := s.sessions.FromRequest(r)
	screen := NewScreen(sess)
	router := NewRouter(screen)

	var st store.Store
	if u, ok := sess.CurrentUser(); ok {
		st = s.stores(u)
	}
	deps := Deps{Store: st, Session: sess, Navigator: router}
	router.Register(Login, func(screen *Screen) Component { return NewLoginPage(screen) })
	router.Register(Bills, func(screen *Screen) Component { return NewBillsList(screen, deps) })
	router.Register(NewBill, func(screen *Screen) Component { return NewBillForm(screen, deps) })
	return screen, router
}

// show navigates to dest and writes the screen, redirecting when the router ended elsewhere
func (s *Server) show(w http.ResponseWriter, r *http.Request, dest Destination, then func(Component) error) {
	screen, router := s.router(r)
	defer router.Close()

	if err := router.Navigate(r.Context(), dest); err != nil {
		slog.Error("Error navigating", "destination", dest, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	current, component := router.Current()
	if current != dest {
		http.Redirect(w, r, current.Path(), http.StatusSeeOther)
		return
	}
	if then != nil {
		if err := then(component); err != nil {
			slog.Warn("Error updating screen", "destination", dest, "error", err)
		}
	}
	s.write(w, screen, http.StatusOK)
}

// write sends the screen as an HTML document
func (s *Server) write(w http.ResponseWriter, screen *Screen, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := screen.Render(w); err != nil {
		slog.Error("Error writing screen", "error", err)
	}
}

// handleStaticCSS serves the stylesheet
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleLoginPage shows the login form, or the bills of an already connected user
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.FromRequest(r).CurrentUser(); ok {
		http.Redirect(w, r, Bills.Path(), http.StatusSeeOther)
		return
	}
	s.show(w, r, Login, nil)
}

// handleLogin opens an employee session
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("email")
	email, ok := ParseLoginEmail(raw)
	if !ok {
		screen := NewScreen(session.Static{})
		page := NewLoginPage(screen)
		if err := page.Fail(raw, MsgLoginEmail); err != nil {
			slog.Error("Error rendering login", "error", err)
		}
		s.write(w, screen, http.StatusBadRequest)
		return
	}

	if err := s.sessions.SetCookie(w, session.User{Type: session.TypeEmployee, Email: email}); err != nil {
		slog.Error("Error issuing session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	slog.Info("Employee connected", "email", email)
	http.Redirect(w, r, Bills.Path(), http.StatusSeeOther)
}

// handleLogout closes the session
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	http.Redirect(w, r, Login.Path(), http.StatusSeeOther)
}

// handleBills shows the bills list, with the receipt modal open when ?receipt= names a row
func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	receipt := r.URL.Query().Get("receipt")
	s.show(w, r, Bills, func(c Component) error {
		list, ok := c.(*BillsList)
		if !ok || receipt == "" {
			return nil
		}
		return list.InspectReceipt(receipt)
	})
}

// handleNewBill shows an empty new bill form
func (s *Server) handleNewBill(w http.ResponseWriter, r *http.Request) {
	if u, ok := s.sessions.FromRequest(r).CurrentUser(); ok {
		s.kept.Drop(u.Email)
	}
	s.show(w, r, NewBill, nil)
}

// handleSubmitBill runs the form with the posted file and fields.
// A successful submit redirects to the bills list; anything else redraws the form.
// The receipt accepted by an earlier post is kept until the bill is created, so
// a post without a file reuses it.
func (s *Server) handleSubmitBill(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(r)
	user, ok := sess.CurrentUser()
	if !ok {
		http.Redirect(w, r, Login.Path(), http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	screen := NewScreen(sess)
	nav := &Redirect{}
	form := NewBillForm(screen, Deps{Store: s.stores(user), Session: sess, Navigator: nav})
	if err := form.Mount(r.Context()); err != nil {
		slog.Error("Error mounting bill form", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer form.Unmount()

	upload, err := formUpload(r)
	if err != nil {
		slog.Error("Error reading file data", "error", err)
		http.Error(w, "Error reading file. Please try again.", http.StatusBadRequest)
		return
	}
	if earlier, ok := s.kept.Get(user.Email); ok {
		_ = form.SelectFile(earlier)
	}
	if !upload.Empty() {
		// a rejection is drawn next to the file input
		_ = form.SelectFile(upload)
	}

	if r.FormValue("action") == "prefill" {
		err = form.Prefill(r.Context())
	} else {
		err = form.Submit(r.Context(), bill.FormValues{
			Type:       r.FormValue("type"),
			Name:       r.FormValue("name"),
			Date:       r.FormValue("date"),
			Amount:     r.FormValue("amount"),
			VAT:        r.FormValue("vat"),
			Pct:        r.FormValue("pct"),
			Commentary: r.FormValue("commentary"),
		})
	}

	if dest, ok := nav.Destination(); ok {
		s.kept.Drop(user.Email)
		http.Redirect(w, r, dest.Path(), http.StatusSeeOther)
		return
	}
	if file, ok := form.Attachment(); ok {
		s.kept.Put(user.Email, file)
	}
	s.write(w, screen, statusFor(err))
}

// statusFor maps a form outcome to the response status
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case bill.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

// formUpload reads the optional receipt part of a parsed multipart form
func formUpload(r *http.Request) (bill.Upload, error) {
	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return bill.Upload{}, nil
	}
	if err != nil {
		return bill.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return bill.Upload{}, err
	}
	return bill.Upload{
		Name:        header.Filename,
		ContentType: bill.NormalizeContentType(header.Header.Get("Content-Type"), header.Filename),
		Data:        data,
	}, nil
}
