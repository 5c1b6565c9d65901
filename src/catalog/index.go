package catalog

import (
	"context"
	"fmt"
	"log/slog"
)

// Embedder turns text into an embedding vector. Implemented by the gemini
// client; tests supply a deterministic stand-in.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Index pairs the store with an embedder and exposes free-text similarity
// search, the shape the dialog layer consumes.
type Index struct {
	store    *Store
	embedder Embedder
	logger   *slog.Logger
}

func NewIndex(store *Store, embedder Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{store: store, embedder: embedder, logger: logger.With("component", "catalog_index")}
}

// Search embeds the query and returns the k nearest products.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]ProductRecord, error) {
	embedding, err := ix.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	records, err := ix.store.SearchByEmbedding(ctx, embedding, k)
	if err != nil {
		return nil, err
	}
	ix.logger.Debug("catalog search", "query", query, "k", k, "results", len(records))
	return records, nil
}

// Count reports how many products are indexed.
func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}

// Close releases the underlying store.
func (ix *Index) Close() error {
	return ix.store.Close()
}

// Ingest indexes one product: builds its embedding from the supplied document
// text and upserts both.
func (ix *Index) Ingest(ctx context.Context, p ProductRecord, document string) error {
	embedding, err := ix.embedder.EmbedText(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to embed product %s: %w", p.ID, err)
	}
	return ix.store.Upsert(ctx, p, document, embedding)
}
