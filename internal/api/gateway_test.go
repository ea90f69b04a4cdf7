package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"SahakariChat/internal/config"
	"SahakariChat/internal/credentials"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func newTestGateway(t *testing.T, baseURL string) (*Gateway, *credentials.Store) {
	t.Helper()

	creds, err := credentials.Open(filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { creds.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := NewGateway(
		config.Config{BaseURL: baseURL, Timeout: 5 * time.Second},
		creds,
		logger,
		tracenoop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"),
	)
	return g, creds
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestQueryAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/chat/query", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.TopK)

		writeJSON(w, http.StatusOK, QueryResponse{Answer: "42", Citations: []Citation{{Source: "handbook.pdf"}}})
	}))
	defer srv.Close()

	g, creds := newTestGateway(t, srv.URL)
	require.NoError(t, creds.Save("tok123", "{}"))

	resp, err := g.Query(context.Background(), "meaning of life", 5)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, "42", resp.Answer)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "handbook.pdf", resp.Citations[0].Source)
}

func TestQueryWithoutCredentialsSendsNoBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, QueryResponse{Answer: "ok"})
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv.URL)

	_, err := g.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestBackendFailureCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "Service unavailable"})
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv.URL)

	_, err := g.Query(context.Background(), "anything", 5)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "Service unavailable", apiErr.Detail)
}

func TestTransportFailureIsNotAPIError(t *testing.T) {
	g, _ := newTestGateway(t, "http://127.0.0.1:1")

	_, err := g.Query(context.Background(), "anything", 5)
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestUnauthorizedClearsCredentialsAndSignalsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	}))
	defer srv.Close()

	g, creds := newTestGateway(t, srv.URL)
	require.NoError(t, creds.Save("stale", `{"username":"alice"}`))

	signals := 0
	g.OnSessionExpired(func() { signals++ })

	// Rearm the latch the way a real login would.
	require.NoError(t, g.saveAuth(AuthResponse{Token: "stale", User: User{Username: "alice"}}))

	_, err := g.Query(context.Background(), "first", 5)
	require.Error(t, err)
	_, err = g.ListDocuments(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, signals, "two 401s must raise the signal once")

	_, ok := creds.Token()
	assert.False(t, ok, "token must be cleared")
	_, ok = creds.User()
	assert.False(t, ok, "user descriptor must be cleared")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "the caller still receives the failure")
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestLoginRejectionDoesNotSignalExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv.URL)

	signals := 0
	g.OnSessionExpired(func() { signals++ })

	_, err := g.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, 0, signals)
}

func TestLoginPersistsCredentialsAndRearmsLatch(t *testing.T) {
	authorized := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			authorized = true
			writeJSON(w, http.StatusOK, AuthResponse{
				Token: "tok123",
				User:  User{ID: 1, Email: "alice@example.com", Username: "alice"},
			})
		default:
			if authorized {
				authorized = false
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token expired"})
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		}
	}))
	defer srv.Close()

	g, creds := newTestGateway(t, srv.URL)

	signals := 0
	g.OnSessionExpired(func() { signals++ })

	_, err := g.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)

	token, ok := creds.Token()
	require.True(t, ok)
	assert.Equal(t, "tok123", token)
	user, ok := creds.User()
	require.True(t, ok)
	assert.Contains(t, user, `"alice"`)

	// First expiry fires the signal.
	_, err = g.Query(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, 1, signals)

	// A fresh login rearms the latch; the next expiry fires again.
	_, err = g.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	_, err = g.Query(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, 2, signals)
}

func TestRegisterPersistsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/register", r.URL.Path)

		var req RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bob", req.Username)

		writeJSON(w, http.StatusCreated, AuthResponse{
			Token: "tok456",
			User:  User{ID: 2, Email: req.Email, Username: req.Username},
		})
	}))
	defer srv.Close()

	g, creds := newTestGateway(t, srv.URL)

	resp, err := g.Register(context.Background(), "bob@example.com", "bob", "secret")
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.User.Username)

	token, ok := creds.Token()
	require.True(t, ok)
	assert.Equal(t, "tok456", token)
}

func TestLogoutClearsCredentials(t *testing.T) {
	g, creds := newTestGateway(t, "http://unused")
	require.NoError(t, creds.Save("tok123", "{}"))

	require.NoError(t, g.Logout())

	_, ok := creds.Token()
	assert.False(t, ok)
}

func TestUploadDocumentSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/documents/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, []byte("%PDF-1.4 test"), data)

		writeJSON(w, http.StatusOK, UploadResponse{Filename: header.Filename, ChunksProcessed: 7})
	}))
	defer srv.Close()

	g, creds := newTestGateway(t, srv.URL)
	require.NoError(t, creds.Save("tok123", "{}"))

	resp, err := g.UploadDocument(context.Background(), "report.pdf", []byte("%PDF-1.4 test"))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", resp.Filename)
	assert.Equal(t, 7, resp.ChunksProcessed)
}

func TestListDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/documents/list", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, ListDocumentsResponse{
			Documents: []DocumentRecord{
				{Filename: "policy.pdf", Size: 2048},
				{Filename: "audit.xlsx", Size: 4096},
			},
			Total: 2,
		})
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, srv.URL)

	docs, err := g.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "policy.pdf", docs[0].Filename)
	assert.Equal(t, int64(4096), docs[1].Size)
}
