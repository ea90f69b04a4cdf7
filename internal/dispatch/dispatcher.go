package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"SahakariChat/internal/api"
	"SahakariChat/internal/session"
)

// fallbackError is shown when the backend gives no detail string.
const fallbackError = "Failed to get response. Please try again."

// QueryClient is the slice of the gateway the dispatcher needs.
type QueryClient interface {
	Query(ctx context.Context, text string, topK int) (*api.QueryResponse, error)
}

// Dispatcher turns user input into the optimistic append / remote query /
// reconcile sequence against the session store. Failed queries are
// terminal; the user resubmits.
type Dispatcher struct {
	client QueryClient
	store  *session.Store
	topK   int
	logger *slog.Logger
}

// New creates a Dispatcher.
func New(client QueryClient, store *session.Store, topK int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, store: store, topK: topK, logger: logger}
}

// Submit runs one query submission to completion. It returns false, with
// the session untouched, when the trimmed input is empty or another query
// or upload is already in flight; the caller keeps the raw input in that
// case. Once true is returned the user message is already in the history
// and the input field should be cleared.
func (d *Dispatcher) Submit(ctx context.Context, input string) bool {
	text := strings.TrimSpace(input)
	if text == "" {
		return false
	}
	if !d.store.BeginPending() {
		d.logger.Debug("submission ignored, another request in flight")
		return false
	}
	defer d.store.EndPending()

	d.store.Append(session.Message{Kind: session.KindUser, Content: text})

	resp, err := d.client.Query(ctx, text, d.topK)
	if err != nil {
		d.logger.Error("query failed", "error", err)
		d.store.Append(session.Message{Kind: session.KindError, Content: errorContent(err)})
		return true
	}

	d.store.Append(session.Message{
		Kind:      session.KindAssistant,
		Content:   resp.Answer,
		Citations: resp.Citations,
	})
	return true
}

// errorContent prefers the backend's detail text over the generic fallback.
func errorContent(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallbackError
}
