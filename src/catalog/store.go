package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	price       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	features    TEXT NOT NULL DEFAULT '[]',
	document    TEXT NOT NULL DEFAULT '',
	embedding   BLOB
);
`

// Store persists product records and their embeddings in sqlite. When the
// sqlite-vec extension is available, similarity search runs as an ANN query
// against a vec0 virtual table; otherwise it falls back to a brute-force
// cosine scan over the embedding blobs.
type Store struct {
	db     *sql.DB
	dims   int
	vec    bool
	logger *slog.Logger
}

// OpenStore opens (creating if necessary) the catalog database at path.
// dims is the embedding dimensionality used for the vector table.
func OpenStore(path string, dims int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}

	s := &Store{db: db, dims: dims, logger: logger}
	s.vec = s.detectVec()
	if s.vec {
		logger.Info("sqlite-vec extension detected, ANN search enabled")
	} else {
		logger.Warn("sqlite-vec extension not available, using brute-force cosine scan")
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) detectVec() bool {
	var version string
	if err := s.db.QueryRow(`SELECT vec_version()`).Scan(&version); err != nil {
		return false
	}
	s.logger.Debug("sqlite-vec available", "version", version)
	return true
}

// Upsert inserts or replaces a product and its embedding.
func (s *Store) Upsert(ctx context.Context, p ProductRecord, document string, embedding []float32) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO products
			(id, name, price, description, image_url, url, color, features, document, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Price, p.Description, p.ImageURL, p.URL, p.Color,
		string(features), document, encodeVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

// Count returns the number of indexed products.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// SearchByEmbedding returns the k products most similar to the query
// embedding, best match first.
func (s *Store) SearchByEmbedding(ctx context.Context, embedding []float32, k int) ([]ProductRecord, error) {
	if k <= 0 {
		k = 5
	}
	if s.vec {
		records, err := s.searchVec(ctx, embedding, k)
		if err == nil {
			return records, nil
		}
		s.logger.Warn("ANN search failed, falling back to cosine scan", "error", err)
	}
	return s.searchScan(ctx, embedding, k)
}

func (s *Store) searchVec(ctx context.Context, embedding []float32, k int) ([]ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, description, image_url, url, color, features,
		       vec_distance_cosine(embedding, ?) AS distance
		FROM products
		WHERE embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT ?`, encodeVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var out []ProductRecord
	for rows.Next() {
		var p ProductRecord
		var features string
		var distance float64
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.ImageURL,
			&p.URL, &p.Color, &features, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
			p.Features = nil
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scored struct {
	record     ProductRecord
	similarity float64
}

func (s *Store) searchScan(ctx context.Context, embedding []float32, k int) ([]ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, description, image_url, url, color, features, embedding
		FROM products WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("catalog scan failed: %w", err)
	}
	defer rows.Close()

	var all []scored
	for rows.Next() {
		var p ProductRecord
		var features string
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.ImageURL,
			&p.URL, &p.Color, &features, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
			p.Features = nil
		}
		all = append(all, scored{record: p, similarity: cosine(embedding, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].similarity > all[j].similarity })
	if len(all) > k {
		all = all[:k]
	}
	out := make([]ProductRecord, 0, len(all))
	for _, sc := range all {
		out = append(out, sc.record)
	}
	return out, nil
}

// encodeVector encodes a float32 slice as the little-endian blob sqlite-vec
// expects.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decodeVector(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, vec); err != nil {
		return nil
	}
	return vec
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
