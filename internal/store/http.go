package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/billed/internal/bill"
)

// UserHeader carries the email of the user a request is made for
const UserHeader = "X-Billed-User"

// HTTP implements Store against the bills API
type HTTP struct {
	baseURL  string
	user     string
	username string
	password string
	client   *http.Client
}

// Option configures an HTTP store
type Option func(*HTTP)

// WithUser scopes requests to the given user email
func WithUser(email string) Option {
	return func(h *HTTP) { h.user = email }
}

// WithBasicAuth sets the credentials sent to the API
func WithBasicAuth(username, password string) Option {
	return func(h *HTTP) {
		h.username = username
		h.password = password
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(h *HTTP) { h.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// NewHTTP creates a store talking to the API at baseURL, e.g. http://localhost:8080/api
func NewHTTP(baseURL string, opts ...Option) (*HTTP, error) {
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid store url %q", baseURL)
	}
	h := &HTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// For returns a copy of the store scoped to another user
func (h *HTTP) For(email string) *HTTP {
	c := *h
	c.user = email
	return &c
}

// Bills returns the bills resource
func (h *HTTP) Bills() Bills {
	return &httpBills{h: h}
}

func (h *HTTP) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if h.user != "" {
		req.Header.Set(UserHeader, h.user)
	}
	if h.username != "" || h.password != "" {
		req.SetBasicAuth(h.username, h.password)
	}
	return req, nil
}

// do sends req and decodes a JSON body into out; non-2xx answers become a RemoteError
func (h *HTTP) do(req *http.Request, out interface{}) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling bills API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Warn("Bills API error", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "body", strings.TrimSpace(string(body)))
		return NewRemoteError(resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type httpBills struct {
	h *HTTP
}

func (b *httpBills) List(ctx context.Context) ([]bill.Bill, error) {
	req, err := b.h.newRequest(ctx, http.MethodGet, "/bills", nil)
	if err != nil {
		return nil, err
	}
	bills := make([]bill.Bill, 0)
	if err := b.h.do(req, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (b *httpBills) Create(ctx context.Context, draft bill.Draft) (*Created, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"email":      draft.Email,
		"type":       draft.Type,
		"name":       draft.Name,
		"date":       draft.Date,
		"amount":     draft.Amount.String(),
		"vat":        draft.VAT.String(),
		"pct":        strconv.Itoa(draft.Pct),
		"commentary": draft.Commentary,
		"status":     string(draft.Status),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	if err := writeFile(writer, draft.File); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := b.h.newRequest(ctx, http.MethodPost, "/bills", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var created Created
	if err := b.h.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (b *httpBills) Update(ctx context.Context, key string, bl bill.Bill) (*bill.Bill, error) {
	data, err := json.Marshal(bl)
	if err != nil {
		return nil, fmt.Errorf("marshaling bill: %w", err)
	}
	req, err := b.h.newRequest(ctx, http.MethodPatch, "/bills/"+url.PathEscape(key), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var updated bill.Bill
	if err := b.h.do(req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Scan sends a receipt to the API scanner
func (h *HTTP) Scan(ctx context.Context, file bill.Upload) (*Suggestion, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writeFile(writer, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := h.newRequest(ctx, http.MethodPost, "/bills/scan", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var s Suggestion
	if err := h.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// writeFile adds the receipt part, keeping its declared content type
func writeFile(writer *multipart.Writer, file bill.Upload) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", bill.NormalizeContentType(file.ContentType, file.Name))
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("writing file part: %w", err)
	}
	return nil
}
