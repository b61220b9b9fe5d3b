// Package search maintains in-memory full-text indexes over materialized
// collections, one index per collection scope.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/vinylroom/vinylroom-server/internal/domain"
)

// Manager owns one Bleve index per collection scope. Indexes live purely
// in memory and are rebuilt whenever a collection is rematerialized, so
// an index is never stale relative to its cached releases.
//
// Thread safety: all public methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	indexes map[string]bleve.Index
	logger  *slog.Logger
}

// NewManager creates an empty index manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		indexes: make(map[string]bleve.Index),
		logger:  logger,
	}
}

// BuildIndex replaces the index for key with one built from releases.
func (m *Manager) BuildIndex(key string, releases []domain.Release) error {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return err
	}
	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	const batchSize = 500
	for i := 0; i < len(releases); i += batchSize {
		end := i + batchSize
		if end > len(releases) {
			end = len(releases)
		}

		batch := index.NewBatch()
		for j := i; j < end; j++ {
			doc := NewDocument(&releases[j])
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	m.mu.Lock()
	old := m.indexes[key]
	m.indexes[key] = index
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	m.logger.Debug("search index built", "key", key, "releases", len(releases))
	return nil
}

// HasIndex reports whether an index exists for key.
func (m *Manager) HasIndex(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[key]
	return ok
}

// DocCount returns the number of documents indexed under key.
func (m *Manager) DocCount(key string) (uint64, error) {
	m.mu.RLock()
	index, ok := m.indexes[key]
	m.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return index.DocCount()
}

// Stats describes one scope's index.
type Stats struct {
	Documents uint64 `json:"documents"`
}

// Stats reports the state of the index for key.
func (m *Manager) Stats(key string) Stats {
	count, err := m.DocCount(key)
	if err != nil {
		return Stats{}
	}
	return Stats{Documents: count}
}

// ClearIndex drops the index for key.
func (m *Manager) ClearIndex(key string) {
	m.mu.Lock()
	index, ok := m.indexes[key]
	delete(m.indexes, key)
	m.mu.Unlock()
	if ok {
		_ = index.Close()
	}
}

// ClearAll drops every index.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	indexes := m.indexes
	m.indexes = make(map[string]bleve.Index)
	m.mu.Unlock()
	for _, index := range indexes {
		_ = index.Close()
	}
}

// Search runs a free-text query against the index for key and returns
// matching release instance ids in relevance order. Every query term
// must match somewhere in the document; within a term, title matches
// outrank artist matches, which outrank the rest. Fuzzy and prefix
// variants give typo tolerance and as-you-type behavior.
//
// A missing index returns no results rather than an error, so callers
// decide whether to materialize first.
func (m *Manager) Search(ctx context.Context, key, queryText string) ([]int64, error) {
	m.mu.RLock()
	index, ok := m.indexes[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	terms := strings.Fields(Normalize(queryText))
	if len(terms) == 0 {
		return nil, nil
	}

	perTerm := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		perTerm = append(perTerm, termQuery(term))
	}
	var q query.Query = perTerm[0]
	if len(perTerm) > 1 {
		q = bleve.NewConjunctionQuery(perTerm...)
	}

	total, err := index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("doc count: %w", err)
	}

	req := bleve.NewSearchRequestOptions(q, int(total), 0, false)
	req.SortBy([]string{"-_score"})

	result, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	ids := make([]int64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// termQuery builds the field disjunction for a single query term.
func termQuery(term string) query.Query {
	queries := make([]query.Query, 0, 9)

	titleMatch := bleve.NewMatchQuery(term)
	titleMatch.SetField("title")
	titleMatch.SetBoost(2.0)
	queries = append(queries, titleMatch)

	artistMatch := bleve.NewMatchQuery(term)
	artistMatch.SetField("artists")
	artistMatch.SetBoost(1.5)
	queries = append(queries, artistMatch)

	for _, field := range []string{"label", "catno", "genre", "style"} {
		mq := bleve.NewMatchQuery(term)
		mq.SetField(field)
		queries = append(queries, mq)
	}

	// Typo tolerance on the two heavy fields.
	for _, field := range []string{"title", "artists"} {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(1)
		fq.SetField(field)
		fq.SetBoost(0.8)
		queries = append(queries, fq)
	}

	// Prefix matching gives as-you-type results.
	if len(term) >= 2 {
		for _, field := range []string{"title", "artists"} {
			pq := bleve.NewPrefixQuery(term)
			pq.SetField(field)
			pq.SetBoost(0.5)
			queries = append(queries, pq)
		}
	}

	return bleve.NewDisjunctionQuery(queries...)
}
