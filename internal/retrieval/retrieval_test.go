package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvislabs/jarvis/internal/logging"
	"github.com/jarvislabs/jarvis/internal/store"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type stubSearcher struct {
	passages []Passage
	err      error
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]Passage, error) {
	return s.passages, s.err
}

func TestService_FiltersByThreshold(t *testing.T) {
	stub := &stubSearcher{passages: []Passage{
		{Content: "relevant", Score: 0.9},
		{Content: "marginal", Score: 0.5},
	}}
	svc := NewService(stub, 3, 0.7, testLog())

	got := svc.Retrieve(context.Background(), "anything")
	require.Len(t, got, 1)
	assert.Equal(t, "relevant", got[0].Content)
}

func TestService_FailureReturnsNothing(t *testing.T) {
	svc := NewService(&stubSearcher{err: errors.New("down")}, 3, 0.7, testLog())
	assert.Nil(t, svc.Retrieve(context.Background(), "query"))
}

func TestService_EmptyQuery(t *testing.T) {
	svc := NewService(&stubSearcher{passages: []Passage{{Content: "x", Score: 1}}}, 3, 0, testLog())
	assert.Nil(t, svc.Retrieve(context.Background(), "   "))
}

func TestService_ContextBlock(t *testing.T) {
	stub := &stubSearcher{passages: []Passage{
		{Content: "Paris is the capital of France", Source: "geo", Score: 0.95},
	}}
	svc := NewService(stub, 3, 0.7, testLog())

	block := svc.ContextBlock(context.Background(), "capital of France")
	assert.Contains(t, block, "Relevant context:")
	assert.Contains(t, block, "Paris is the capital of France")
	assert.Contains(t, block, "source: geo")

	empty := NewService(&stubSearcher{}, 3, 0.7, testLog())
	assert.Empty(t, empty.ContextBlock(context.Background(), "anything"))
}

func TestHTTPSearcher_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "capitals", req.Query)
		assert.Equal(t, 3, req.Limit)

		json.NewEncoder(w).Encode(searchResponse{Results: []Passage{
			{Content: "Paris", Source: "geo", Score: 0.92},
		}})
	}))
	defer srv.Close()

	searcher := NewHTTPSearcher(srv.URL)
	passages, err := searcher.Search(context.Background(), "capitals", 3)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "Paris", passages[0].Content)
}

func TestHTTPSearcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPSearcher(srv.URL).Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestLocalSearcher(t *testing.T) {
	db, err := store.Open(":memory:", testLog())
	require.NoError(t, err)
	defer db.Close()

	docs := store.NewDocumentStore(db)
	_, err = docs.Store(store.Document{Source: "notes", Content: "goroutines communicate via channels"})
	require.NoError(t, err)

	searcher := NewLocalSearcher(docs)
	passages, err := searcher.Search(context.Background(), "channels", 5)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, 1.0, passages[0].Score)
	assert.Equal(t, "notes", passages[0].Source)

	none, err := searcher.Search(context.Background(), "kubernetes", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}
