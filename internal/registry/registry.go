package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SahakariChat/internal/api"
	"SahakariChat/internal/session"

	gocache "github.com/patrickmn/go-cache"
)

const cacheKey = "documents"

// uploadFallback is shown when the backend gives no detail string.
const uploadFallback = "Failed to upload document."

// DocumentClient is the slice of the gateway the registry needs.
type DocumentClient interface {
	ListDocuments(ctx context.Context) ([]api.DocumentRecord, error)
	UploadDocument(ctx context.Context, filename string, data []byte) (*api.UploadResponse, error)
}

// Registry is a read-through cache of the backend's document list. Upload
// outcomes are folded into the chat history as system or error messages.
type Registry struct {
	client DocumentClient
	store  *session.Store
	cache  *gocache.Cache
	logger *slog.Logger
}

// New creates a Registry. Documents change rarely; an hour of cache with an
// explicit refresh after every upload keeps the list warm without going
// stale.
func New(client DocumentClient, store *session.Store, logger *slog.Logger) *Registry {
	return &Registry{
		client: client,
		store:  store,
		cache:  gocache.New(1*time.Hour, 10*time.Minute),
		logger: logger,
	}
}

// Refresh replaces the cached list wholesale with the backend's view.
// It never merges, so stale duplicates cannot accumulate.
func (r *Registry) Refresh(ctx context.Context) error {
	docs, err := r.client.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	r.cache.Set(cacheKey, docs, gocache.DefaultExpiration)
	r.logger.Info("document list refreshed", "count", len(docs))
	return nil
}

// Documents returns a copy of the cached list, nil when nothing is cached.
func (r *Registry) Documents() []api.DocumentRecord {
	x, found := r.cache.Get(cacheKey)
	if !found {
		return nil
	}

	docs := x.([]api.DocumentRecord)
	out := make([]api.DocumentRecord, len(docs))
	copy(out, docs)
	return out
}

// Upload sends the file and reports the outcome into the session: a system
// message on success (after refreshing the list), an error message carrying
// the backend detail on failure. The cache is untouched on failure.
func (r *Registry) Upload(ctx context.Context, filename string, data []byte) {
	resp, err := r.client.UploadDocument(ctx, filename, data)
	if err != nil {
		r.logger.Error("upload failed", "filename", filename, "error", err)
		r.store.Append(session.Message{Kind: session.KindError, Content: uploadErrorContent(err)})
		return
	}

	// Best-effort: the upload already succeeded, a failed refresh only
	// leaves the list one entry behind.
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("failed to refresh document list after upload", "error", err)
	}

	r.store.Append(session.Message{
		Kind: session.KindSystem,
		Content: fmt.Sprintf("Document %q uploaded and processed successfully (%d chunks).",
			resp.Filename, resp.ChunksProcessed),
	})
}

func uploadErrorContent(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return uploadFallback
}
