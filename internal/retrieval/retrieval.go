// Package retrieval augments agent prompts with knowledge passages.
//
// Passages come from an external retrieval service when one is
// configured, or from the local full-text document index otherwise.
// Retrieval failures never fail a turn; the agent just answers without
// extra context.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/jarvislabs/jarvis/internal/logging"
)

// Passage is one retrieved knowledge snippet.
type Passage struct {
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}

// Searcher finds passages relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Passage, error)
}

// Service wraps a Searcher with score filtering and prompt formatting.
type Service struct {
	searcher  Searcher
	limit     int
	threshold float64
	log       *logging.Logger
}

// NewService creates a retrieval service. Limit of 0 defaults to 3.
func NewService(searcher Searcher, limit int, threshold float64, log *logging.Logger) *Service {
	if limit <= 0 {
		limit = 3
	}
	return &Service{
		searcher:  searcher,
		limit:     limit,
		threshold: threshold,
		log:       log.Sub("retrieval"),
	}
}

// Retrieve returns passages scoring at or above the threshold.
func (s *Service) Retrieve(ctx context.Context, query string) []Passage {
	if s.searcher == nil || strings.TrimSpace(query) == "" {
		return nil
	}

	passages, err := s.searcher.Search(ctx, query, s.limit)
	if err != nil {
		s.log.Warn().Err(err).Msg("retrieval failed, continuing without context")
		return nil
	}

	var kept []Passage
	for _, p := range passages {
		if p.Score >= s.threshold {
			kept = append(kept, p)
		}
	}
	return kept
}

// ContextBlock renders passages as a prompt section, or "" when there
// is nothing to add.
func (s *Service) ContextBlock(ctx context.Context, query string) string {
	passages := s.Retrieve(ctx, query)
	if len(passages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant context:\n\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(p.Content))
		if p.Source != "" {
			fmt.Fprintf(&b, "    (source: %s)\n", p.Source)
		}
	}
	return b.String()
}
