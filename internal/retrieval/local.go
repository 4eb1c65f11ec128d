package retrieval

import (
	"context"

	"github.com/jarvislabs/jarvis/internal/store"
)

// LocalSearcher serves passages from the sqlite full-text index when
// no external retrieval service is configured. FTS matches carry no
// embedding similarity, so every hit scores 1.0 and ordering comes
// from the FTS rank.
type LocalSearcher struct {
	docs *store.DocumentStore
}

// NewLocalSearcher creates a searcher over the local document store.
func NewLocalSearcher(docs *store.DocumentStore) *LocalSearcher {
	return &LocalSearcher{docs: docs}
}

// Search runs a full-text query against the document index.
func (l *LocalSearcher) Search(ctx context.Context, query string, limit int) ([]Passage, error) {
	docs, err := l.docs.Search(query, limit)
	if err != nil {
		return nil, err
	}

	passages := make([]Passage, 0, len(docs))
	for _, doc := range docs {
		passages = append(passages, Passage{
			Content: doc.Content,
			Source:  doc.Source,
			Score:   1.0,
		})
	}
	return passages, nil
}
