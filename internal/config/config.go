package config

import "time"

const (
	// DefaultBaseURL is the backend's local development address.
	DefaultBaseURL = "http://localhost:8000"

	// APIPrefix is prepended to every backend route.
	APIPrefix = "/api/v1"

	// DefaultTopK is the number of retrieval results requested per query.
	DefaultTopK = 5

	// MaxUploadBytes is the advertised upload limit (10 MiB). This is a
	// best-effort pre-flight check; the backend enforces the real bound.
	MaxUploadBytes = 10 * 1024 * 1024

	// DefaultCredentialsPath is where the bearer token and user descriptor
	// persist between runs.
	DefaultCredentialsPath = "sahakari.db"
)

// AllowedExtensions lists the document types the backend can ingest.
var AllowedExtensions = []string{".pdf", ".xlsx", ".xls"}

// Config holds application configuration
type Config struct {
	BaseURL         string
	Debug           bool
	TopK            int           // Retrieval results requested per query
	Timeout         time.Duration // HTTP client timeout
	CredentialsPath string
}
