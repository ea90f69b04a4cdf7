package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"SahakariChat/internal/config"
	"SahakariChat/internal/credentials"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// APIError is a backend-reported failure (4xx/5xx with a detail string).
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("API error %d", e.Status)
}

// Gateway is the single outbound channel to the backend. Every
// authenticated request carries the stored bearer token; a 401 on any such
// request clears the credential store and delivers the session-expired
// signal before the call's own error is returned.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	creds      *credentials.Store
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	mu        sync.Mutex
	expired   bool // latch: one expiry signal per credential lifetime
	onExpired func()
}

// NewGateway creates a Gateway talking to cfg.BaseURL.
func NewGateway(cfg config.Config, creds *credentials.Store, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) *Gateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Gateway{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		logger:     logger,
		tracer:     tracer,
		meter:      meter,
	}
}

// OnSessionExpired registers the callback fired when the backend rejects
// the stored credentials. It fires at most once until a new login or
// registration succeeds.
func (g *Gateway) OnSessionExpired(fn func()) {
	g.mu.Lock()
	g.onExpired = fn
	g.mu.Unlock()
}

// Login exchanges credentials for a bearer token and persists it together
// with the user descriptor. A 401 here means bad credentials, not an
// expired session, so the expiry signal stays quiet.
func (g *Gateway) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	req := LoginRequest{Email: email, Password: password}
	if err := g.doJSON(ctx, "auth_login", http.MethodPost, "/auth/login", req, &out, false); err != nil {
		return nil, err
	}
	if err := g.saveAuth(out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and persists the returned credentials.
func (g *Gateway) Register(ctx context.Context, email, username, password string) (*AuthResponse, error) {
	var out AuthResponse
	req := RegisterRequest{Email: email, Username: username, Password: password}
	if err := g.doJSON(ctx, "auth_register", http.MethodPost, "/auth/register", req, &out, false); err != nil {
		return nil, err
	}
	if err := g.saveAuth(out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout clears the stored credentials. No backend call is involved.
func (g *Gateway) Logout() error {
	g.mu.Lock()
	g.expired = true
	g.mu.Unlock()

	if err := g.creds.Clear(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	g.logger.Info("logged out, credentials cleared")
	return nil
}

// Query sends a retrieval question to the backend.
func (g *Gateway) Query(ctx context.Context, text string, topK int) (*QueryResponse, error) {
	var out QueryResponse
	req := QueryRequest{Query: text, TopK: topK}
	if err := g.doJSON(ctx, "chat_query", http.MethodPost, "/chat/query", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDocuments fetches the backend's view of the ingested documents.
func (g *Gateway) ListDocuments(ctx context.Context) ([]DocumentRecord, error) {
	var out ListDocumentsResponse
	if err := g.doJSON(ctx, "documents_list", http.MethodGet, "/documents/list", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// UploadDocument transmits the file as a multipart body. The bytes are sent
// as-is; parsing is the backend's job.
func (g *Gateway) UploadDocument(ctx context.Context, filename string, data []byte) (*UploadResponse, error) {
	ctx, span := g.tracer.Start(ctx, "documents_upload")
	defer span.End()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+config.APIPrefix+"/documents/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	g.attachBearer(req)

	respBody, err := g.roundTrip(ctx, req, "documents_upload", true)
	if err != nil {
		return nil, err
	}

	var out UploadResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}

// saveAuth persists a fresh token+user pair and rearms the expiry latch.
func (g *Gateway) saveAuth(out AuthResponse) error {
	userJSON, err := json.Marshal(out.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := g.creds.Save(out.Token, string(userJSON)); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	g.mu.Lock()
	g.expired = false
	g.mu.Unlock()

	g.logger.Info("credentials saved", "username", out.User.Username)
	return nil
}

// doJSON sends a JSON request and decodes the success body into out.
func (g *Gateway) doJSON(ctx context.Context, op, method, path string, payload, out interface{}, authed bool) error {
	ctx, span := g.tracer.Start(ctx, op)
	defer span.End()

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+config.APIPrefix+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		g.attachBearer(req)
	}

	respBody, err := g.roundTrip(ctx, req, op, authed)
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// attachBearer adds the Authorization header when a token is stored.
func (g *Gateway) attachBearer(req *http.Request) {
	if token, ok := g.creds.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// roundTrip performs the request, records its duration, and maps failures
// into the error taxonomy: transport errors come back wrapped, backend
// failures come back as *APIError carrying the detail string.
func (g *Gateway) roundTrip(ctx context.Context, req *http.Request, op string, authed bool) ([]byte, error) {
	start := time.Now()

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	duration := time.Since(start)
	histogram, err := g.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}

	if resp.StatusCode == http.StatusUnauthorized && authed {
		g.sessionExpired()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			apiErr.Detail = eb.Detail
		}
		g.logger.Warn("request failed", "op", op, "status", resp.StatusCode, "detail", apiErr.Detail)
		return nil, apiErr
	}

	return body, nil
}

// sessionExpired clears the stored credentials and delivers the expiry
// signal. The latch keeps a burst of 401s from signalling more than once
// for the same logical logout.
func (g *Gateway) sessionExpired() {
	g.mu.Lock()
	already := g.expired
	g.expired = true
	fn := g.onExpired
	g.mu.Unlock()

	if already {
		return
	}

	if err := g.creds.Clear(); err != nil {
		g.logger.Error("failed to clear credentials", "error", err)
	}
	g.logger.Info("session expired, credentials cleared")

	if fn != nil {
		fn()
	}
}
