package billing

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Server exposes the bills API
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with its own mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux registers the API routes on mux, which may be shared with the UI
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// Enabled reports whether credentials are configured
func (a BasicAuth) Enabled() bool {
	return a.Username != "" || a.Password != ""
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if !s.basicAuth.Enabled() {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Billed"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	})
}

// requireAuthOrSignature lets signed receipt links through without credentials
func (s *Server) requireAuthOrSignature(next http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if s.service.VerifyFileLink(r.PathValue("id"), q.Get("expires"), q.Get("sig")) || s.authenticate(r) {
			next(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="Billed"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Billed-User")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers the API routes, most specific first
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/bills/scan", s.requireAuth(s.handleScanReceipt))
	s.mux.HandleFunc("GET /api/bills/{id}/file", s.requireAuthOrSignature(s.handleGetBillFile))
	s.mux.HandleFunc("GET /api/bills/{id}", s.requireAuth(s.handleGetBill))
	s.mux.HandleFunc("PATCH /api/bills/{id}", s.requireAuth(s.handleUpdateBill))
	s.mux.HandleFunc("DELETE /api/bills/{id}", s.requireAuth(s.handleDeleteBill))
	s.mux.HandleFunc("GET /api/bills", s.requireAuth(s.handleListBills))
	s.mux.HandleFunc("POST /api/bills", s.requireAuth(s.handleCreateBill))
	s.mux.HandleFunc("OPTIONS /api/", s.corsMiddleware(func(http.ResponseWriter, *http.Request) {}))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
