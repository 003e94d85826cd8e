// Package knowledge is the shared fact base: Postgres-backed persistence
// with an in-memory bleve index for full-text search.
package knowledge

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/store"
)

// indexedFact is the bleve document shape.
type indexedFact struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// Base serves fact search and citation for agents. It implements
// agent.Knowledge. The bleve index mirrors the knowledge_facts table and is
// rebuilt from it on startup.
type Base struct {
	store  *store.Store
	logger *log.Logger

	mu    sync.RWMutex
	index bleve.Index
	meta  map[string]store.KnowledgeFact
}

// NewBase builds the in-memory index and loads existing facts from the store.
func NewBase(ctx context.Context, st *store.Store, logger *log.Logger) (*Base, error) {
	if logger == nil {
		logger = log.Default()
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge index: %w", err)
	}
	b := &Base{store: st, logger: logger, index: index, meta: make(map[string]store.KnowledgeFact)}

	if st != nil {
		facts, err := st.ListRecentFacts(ctx, 10000)
		if err != nil {
			return nil, fmt.Errorf("failed to load facts: %w", err)
		}
		for _, f := range facts {
			if err := b.indexFact(f); err != nil {
				return nil, err
			}
		}
		logger.Printf("[KNOWLEDGE] indexed %d facts", len(facts))
	}
	return b, nil
}

func (b *Base) indexFact(f store.KnowledgeFact) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.index.Index(f.ID, indexedFact{Content: f.Content, Category: f.Category}); err != nil {
		return fmt.Errorf("failed to index fact %s: %w", f.ID, err)
	}
	b.meta[f.ID] = f
	return nil
}

// AddFact persists a new fact and makes it searchable.
func (b *Base) AddFact(ctx context.Context, f store.KnowledgeFact) (store.KnowledgeFact, error) {
	if b.store != nil {
		stored, err := b.store.CreateFact(ctx, f)
		if err != nil {
			return store.KnowledgeFact{}, err
		}
		f = stored
	}
	if err := b.indexFact(f); err != nil {
		return store.KnowledgeFact{}, err
	}
	return f, nil
}

// Search runs a full-text query and returns up to limit hits at or above
// minConfidence. Every returned fact counts as a lookup for tier 2 and 3
// callers; counter failures are logged, not returned.
func (b *Base) Search(ctx context.Context, query string, minConfidence float64, tier, limit int) ([]agent.FactHit, error) {
	if limit <= 0 {
		limit = 5
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)

	b.mu.RLock()
	res, err := b.index.Search(req)
	if err != nil {
		b.mu.RUnlock()
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}
	var out []agent.FactHit
	for _, hit := range res.Hits {
		f, ok := b.meta[hit.ID]
		if !ok || f.Confidence < minConfidence {
			continue
		}
		out = append(out, agent.FactHit{
			ID:         f.ID,
			Content:    f.Content,
			Category:   f.Category,
			Confidence: f.Confidence,
		})
	}
	b.mu.RUnlock()

	if b.store != nil {
		for _, hit := range out {
			if err := b.store.IncrementFactLookup(ctx, hit.ID, tier); err != nil {
				b.logger.Printf("[KNOWLEDGE] lookup counter failed for %s: %v", hit.ID, err)
			}
		}
	}
	return out, nil
}

// Cite returns one fact by id and records the lookup against the querying
// agent's tier. Counter failures are logged, not returned; a citation read
// must not fail because bookkeeping did.
func (b *Base) Cite(ctx context.Context, factID string, tier int) (agent.FactHit, error) {
	b.mu.RLock()
	f, ok := b.meta[factID]
	b.mu.RUnlock()
	if !ok {
		return agent.FactHit{}, fmt.Errorf("fact %s not found", factID)
	}
	if b.store != nil {
		if err := b.store.IncrementFactLookup(ctx, factID, tier); err != nil {
			b.logger.Printf("[KNOWLEDGE] lookup counter failed for %s: %v", factID, err)
		}
	}
	return agent.FactHit{ID: f.ID, Content: f.Content, Category: f.Category, Confidence: f.Confidence}, nil
}

// Size returns the number of indexed facts.
func (b *Base) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.meta)
}
