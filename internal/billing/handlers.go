package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/store"
)

// maxUploadSize bounds receipt uploads; phone photos rarely exceed 10MB
const maxUploadSize = int64(20 << 20)

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError answers {"error": message}
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// validationMessage returns the user-facing text of a validation error
func validationMessage(err error) string {
	var ve *bill.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

// owner returns the user email a request is scoped to, empty for unscoped API clients
func owner(r *http.Request) string {
	return r.Header.Get(store.UserHeader)
}

// readUpload extracts the receipt part of a multipart form
func readUpload(w http.ResponseWriter, r *http.Request) (bill.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "File is too large. Maximum size is 20MB."
		}
		writeError(w, http.StatusBadRequest, message)
		return bill.Upload{}, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, bill.MsgNoFile)
		return bill.Upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return bill.Upload{}, false
	}

	return bill.Upload{
		Name:        header.Filename,
		ContentType: bill.NormalizeContentType(header.Header.Get("Content-Type"), header.Filename),
		Data:        data,
	}, true
}

// handleListBills returns the bills of the requesting user.
// Listing every user's bills needs configured credentials.
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	email := owner(r)
	if email == "" && !s.basicAuth.Enabled() {
		writeError(w, http.StatusForbidden, store.UserHeader+" header is required")
		return
	}
	bills, err := s.service.ListBills(r.Context(), email)
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

// handleCreateBill validates the form, stores the receipt and records the bill
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	upload, ok := readUpload(w, r)
	if !ok {
		return
	}

	email := r.FormValue("email")
	if u := owner(r); u != "" {
		email = u
	}
	draft, err := bill.NewDraft(bill.FormValues{
		Type:       r.FormValue("type"),
		Name:       r.FormValue("name"),
		Date:       r.FormValue("date"),
		Amount:     r.FormValue("amount"),
		VAT:        r.FormValue("vat"),
		Pct:        r.FormValue("pct"),
		Commentary: r.FormValue("commentary"),
	}, email, upload)
	if err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	b, err := s.service.CreateBill(r.Context(), draft)
	if err != nil {
		slog.Error("Error creating bill", "filename", upload.Name, "error", err)
		if bill.IsValidation(err) {
			writeError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	slog.Info("Bill created", "id", b.ID, "email", b.Email, "type", b.Type)
	writeJSON(w, http.StatusCreated, store.Created{FileURL: b.FileURL, Key: b.ID})
}

// lookup loads a bill visible to the requester, answering 404 otherwise
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*bill.Bill, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Bill ID required")
		return nil, false
	}
	b, err := s.service.GetBill(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Error getting bill", "id", id, "error", err)
		}
		writeError(w, http.StatusNotFound, "Bill not found")
		return nil, false
	}
	if u := owner(r); u != "" && b.Email != u {
		writeError(w, http.StatusNotFound, "Bill not found")
		return nil, false
	}
	return b, true
}

// handleGetBill returns a single bill
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleUpdateBill applies a JSON patch to a pending bill
func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookup(w, r); !ok {
		return
	}

	var patch bill.Bill
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.service.UpdateBill(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		slog.Error("Error updating bill", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteBill deletes a bill and its receipt
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookup(w, r); !ok {
		return
	}
	if err := s.service.DeleteBill(r.Context(), r.PathValue("id")); err != nil {
		slog.Error("Error deleting bill", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting bill")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetBillFile serves the receipt of a bill
func (s *Server) handleGetBillFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetBillFile(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}

// handleScanReceipt suggests bill fields for an uploaded receipt
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	upload, ok := readUpload(w, r)
	if !ok {
		return
	}

	suggestion, err := s.service.ScanReceipt(r.Context(), upload)
	switch {
	case errors.Is(err, ErrScannerDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	case bill.IsValidation(err):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case err != nil:
		writeError(w, http.StatusBadGateway, "Error scanning receipt")
	default:
		writeJSON(w, http.StatusOK, suggestion)
	}
}
