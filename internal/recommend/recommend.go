// Package recommend suggests catalog products relevant to a diagnosis.
package recommend

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/embeddings"
)

const collectionName = "products"

// DefaultTopK is the number of products attached to a chat reply.
const DefaultTopK = 3

// partKeywords are repeated in front of the query to boost their weight.
var partKeywords = []string{
	"headlight", "brake pads", "battery", "spark plugs",
	"oil filter", "tire", "coolant", "alternator", "belt",
	"sensor", "pump", "brake rotor", "fuse", "radiator",
}

var obdCode = regexp.MustCompile(`\b[pP]\d{4}\b`)

// ExtractKeywords returns the part names and OBD-II fault codes found in text.
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, kw := range partKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return append(out, obdCode.FindAllString(text, -1)...)
}

// fitter is implemented by embedders that learn from the corpus.
type fitter interface {
	Fit(corpus []string)
}

// Recommender indexes a product catalog and answers similarity queries.
// It is safe for concurrent use once built.
type Recommender struct {
	embedder   embeddings.Embedder
	collection *chromem.Collection
	products   map[string]Product
	logger     *zap.Logger
}

// New indexes products with embedder. A nil embedder uses the local TF-IDF
// embedder. Products whose text embeds to the zero vector are skipped.
func New(ctx context.Context, products []Product, embedder embeddings.Embedder, logger *zap.Logger) (*Recommender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if embedder == nil {
		embedder = embeddings.NewTFIDFEmbedder(0)
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = p.Text()
	}
	if f, ok := embedder.(fitter); ok {
		f.Fit(texts)
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	r := &Recommender{
		embedder:   embedder,
		collection: col,
		products:   make(map[string]Product, len(products)),
		logger:     logger,
	}
	if len(products) == 0 {
		logger.Warn("product catalog is empty, recommendations disabled")
		return r, nil
	}

	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding products: %w", err)
	}

	docs := make([]chromem.Document, 0, len(products))
	for i, p := range products {
		if embeddings.IsZero(vecs[i]) {
			continue
		}
		if _, dup := r.products[p.ID]; dup {
			logger.Warn("duplicate product id, keeping first", zap.String("id", p.ID))
			continue
		}
		r.products[p.ID] = p
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Content:   texts[i],
			Embedding: vecs[i],
		})
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			return nil, fmt.Errorf("indexing products: %w", err)
		}
	}

	logger.Info("indexed product catalog",
		zap.Int("products", len(docs)),
		zap.String("embedder", embedder.Name()))
	return r, nil
}

// Load reads the catalog at path and indexes it.
func Load(ctx context.Context, path string, embedder embeddings.Embedder, logger *zap.Logger) (*Recommender, error) {
	products, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, products, embedder, logger)
}

// Count returns the number of indexed products.
func (r *Recommender) Count() int {
	return r.collection.Count()
}

// Recommend returns up to topK products most similar to query, best first.
// Only products with a positive similarity are returned.
func (r *Recommender) Recommend(ctx context.Context, query string, topK int) ([]Product, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	count := r.collection.Count()
	if count == 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	topK = min(topK, count)

	boosted := strings.ToLower(strings.Join(ExtractKeywords(query), " ") + " " + query)
	vecs, err := r.embedder.Embed(ctx, []string{boosted})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 || embeddings.IsZero(vecs[0]) {
		return nil, nil
	}

	results, err := r.collection.QueryEmbedding(ctx, vecs[0], topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]Product, 0, len(results))
	for _, res := range results {
		if res.Similarity <= 0 {
			continue
		}
		if p, ok := r.products[res.ID]; ok {
			out = append(out, p)
		}
	}
	r.logger.Debug("recommended products", zap.Int("count", len(out)))
	return out, nil
}
