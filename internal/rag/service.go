package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ragserve/ragserve/internal/log"
)

// contextSeparator joins rendered chunks in the context string.
const contextSeparator = "\n\n---\n\n"

// Options holds the search settings of one configuration.
type Options struct {
	TopK      int
	UseMMR    bool
	MMRFetchK int
	MMRLambda float64
}

// Service builds textual context for a query using an Index.
// Safe for concurrent use once the index is loaded.
type Service struct {
	index  *Index
	opts   Options
	logger log.Logger
}

// NewService wraps a loaded index with search settings.
func NewService(index *Index, opts Options, logger log.Logger) *Service {
	return &Service{index: index, opts: opts, logger: logger}
}

// Search retrieves the top chunks for the query using the configured
// strategy.
func (s *Service) Search(ctx context.Context, query string) ([]Result, error) {
	if s.opts.UseMMR {
		return s.SearchMMR(ctx, query, nil)
	}
	return s.SearchSimilarity(ctx, query)
}

// SearchSimilarity retrieves the top chunks by plain vector similarity,
// regardless of the configured strategy.
func (s *Service) SearchSimilarity(ctx context.Context, query string) ([]Result, error) {
	return s.index.Query(ctx, query, s.opts.TopK)
}

// SearchMMR retrieves chunks with maximal-marginal-relevance reranking,
// regardless of the configured strategy. A non-nil lambda overrides the
// configured value for this call.
func (s *Service) SearchMMR(ctx context.Context, query string, lambda *float64) ([]Result, error) {
	l := s.opts.MMRLambda
	if lambda != nil {
		l = *lambda
	}

	fetchK := s.opts.MMRFetchK
	if fetchK < s.opts.TopK {
		fetchK = s.opts.TopK
	}

	candidates, err := s.index.Query(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}
	return maximalMarginalRelevance(candidates, s.opts.TopK, l), nil
}

// GetContext retrieves chunks for the query and renders them into a single
// context string. QA chunks are emitted as indexed; text chunks carry their
// source file name. An empty result set yields an empty string, not an
// error.
func (s *Service) GetContext(ctx context.Context, query string) (string, error) {
	results, err := s.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Chunk.Kind == KindQA {
			parts = append(parts, r.Chunk.Content)
		} else {
			parts = append(parts, fmt.Sprintf("From %s:\n%s", r.Chunk.Source, r.Chunk.Content))
		}
	}

	s.logger.Debug("context assembled",
		"query_len", len(query),
		"chunks", len(results))

	return strings.Join(parts, contextSeparator), nil
}

// QAPairs exposes the index's sidecar list for inspection endpoints.
func (s *Service) QAPairs() []QAPair {
	return s.index.QAPairs()
}
