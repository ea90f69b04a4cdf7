package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"SahakariChat/internal/api"
	"SahakariChat/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocumentClient struct {
	docs       []api.DocumentRecord
	listErr    error
	listCalls  int
	uploadResp *api.UploadResponse
	uploadErr  error
}

func (f *fakeDocumentClient) ListDocuments(ctx context.Context) ([]api.DocumentRecord, error) {
	f.listCalls++
	return f.docs, f.listErr
}

func (f *fakeDocumentClient) UploadDocument(ctx context.Context, filename string, data []byte) (*api.UploadResponse, error) {
	return f.uploadResp, f.uploadErr
}

func newRegistry(client DocumentClient) (*Registry, *session.Store) {
	store := session.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(client, store, logger), store
}

func TestRefreshReplacesWholesale(t *testing.T) {
	client := &fakeDocumentClient{docs: []api.DocumentRecord{
		{Filename: "a.pdf"}, {Filename: "b.xlsx"}, {Filename: "c.xls"},
	}}
	r, _ := newRegistry(client)

	require.NoError(t, r.Refresh(context.Background()))
	require.Len(t, r.Documents(), 3)

	client.docs = []api.DocumentRecord{{Filename: "only.pdf"}}
	require.NoError(t, r.Refresh(context.Background()))

	docs := r.Documents()
	require.Len(t, docs, 1, "refresh must replace, never merge")
	assert.Equal(t, "only.pdf", docs[0].Filename)
}

func TestDocumentsEmptyBeforeRefresh(t *testing.T) {
	r, _ := newRegistry(&fakeDocumentClient{})
	assert.Nil(t, r.Documents())
}

func TestUploadSuccessRefreshesAndAppendsSystemMessage(t *testing.T) {
	client := &fakeDocumentClient{
		docs:       []api.DocumentRecord{{Filename: "report.pdf"}},
		uploadResp: &api.UploadResponse{Filename: "report.pdf", ChunksProcessed: 12},
	}
	r, store := newRegistry(client)

	r.Upload(context.Background(), "report.pdf", []byte("bytes"))

	assert.Equal(t, 1, client.listCalls, "success must refresh the list")
	require.Len(t, r.Documents(), 1)

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, session.KindSystem, history[0].Kind)
	assert.Contains(t, history[0].Content, `"report.pdf"`)
	assert.Contains(t, history[0].Content, "12 chunks")
}

func TestUploadFailureAppendsDetailAndKeepsCache(t *testing.T) {
	client := &fakeDocumentClient{docs: []api.DocumentRecord{
		{Filename: "a.pdf"}, {Filename: "b.xlsx"},
	}}
	r, store := newRegistry(client)
	require.NoError(t, r.Refresh(context.Background()))
	listCallsBefore := client.listCalls

	client.uploadErr = &api.APIError{Status: 400, Detail: "File type not allowed"}
	r.Upload(context.Background(), "bad.exe", []byte("bytes"))

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, session.KindError, history[0].Kind)
	assert.Equal(t, "File type not allowed", history[0].Content)

	assert.Equal(t, listCallsBefore, client.listCalls, "failure must not refresh")
	assert.Len(t, r.Documents(), 2, "failure must not touch the cache")
}

func TestUploadFailureWithoutDetailUsesFallback(t *testing.T) {
	client := &fakeDocumentClient{uploadErr: context.DeadlineExceeded}
	r, store := newRegistry(client)

	r.Upload(context.Background(), "report.pdf", []byte("bytes"))

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Failed to upload document.", history[0].Content)
}
