package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// DefaultTFIDFDimensions caps the vocabulary size.
const DefaultTFIDFDimensions = 4096

// maxDocFrequency drops terms that appear in more than this share of the
// corpus, mirroring max_df in common TF-IDF vectorizers.
const maxDocFrequency = 0.95

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "can": true, "do": true, "does": true,
	"for": true, "from": true, "has": true, "have": true, "i": true, "if": true,
	"in": true, "is": true, "it": true, "its": true, "me": true, "my": true,
	"no": true, "not": true, "of": true, "on": true, "or": true, "so": true,
	"that": true, "the": true, "this": true, "to": true, "was": true, "we": true,
	"what": true, "when": true, "which": true, "will": true, "with": true,
	"you": true, "your": true,
}

// TFIDFEmbedder is a local embedder over word uni- and bigrams. Fit learns a
// vocabulary of at most Dimensions terms and their inverse document
// frequencies; before Fit, terms are hashed into the vector instead.
// Vectors are L2-normalized. It needs no network access.
type TFIDFEmbedder struct {
	dims int

	mu    sync.RWMutex
	vocab map[string]int
	idf   []float32
}

// NewTFIDFEmbedder creates an unfitted embedder. dims <= 0 uses the default.
func NewTFIDFEmbedder(dims int) *TFIDFEmbedder {
	if dims <= 0 {
		dims = DefaultTFIDFDimensions
	}
	return &TFIDFEmbedder{dims: dims}
}

func (e *TFIDFEmbedder) Name() string    { return "tfidf-local" }
func (e *TFIDFEmbedder) Dimensions() int { return e.dims }

// Fit learns the vocabulary from corpus, replacing any earlier fit. Terms
// present in more than 95% of documents are ignored. When there are more
// terms than dimensions the most frequent ones are kept.
func (e *TFIDFEmbedder) Fit(corpus []string) {
	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, term := range Terms(doc) {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	n := float64(len(corpus))
	terms := make([]string, 0, len(df))
	for term, count := range df {
		if n > 1 && float64(count)/n > maxDocFrequency {
			continue
		}
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > e.dims {
		terms = terms[:e.dims]
	}

	vocab := make(map[string]int, len(terms))
	idf := make([]float32, e.dims)
	for i, term := range terms {
		vocab[term] = i
		// Smoothed idf: ln((1+n)/(1+df)) + 1.
		idf[i] = float32(math.Log((1+n)/(1+float64(df[term]))) + 1)
	}

	e.mu.Lock()
	e.vocab = vocab
	e.idf = idf
	e.mu.Unlock()
}

// Embed returns one normalized vector per text. A text with no known terms
// yields the zero vector.
func (e *TFIDFEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *TFIDFEmbedder) vector(text string) []float32 {
	tf := make(map[int]int)
	for _, term := range Terms(text) {
		if e.vocab == nil {
			tf[e.bucket(term)]++
			continue
		}
		if i, ok := e.vocab[term]; ok {
			tf[i]++
		}
	}

	vec := make([]float32, e.dims)
	var norm float64
	for i, count := range tf {
		v := float32(1 + math.Log(float64(count)))
		if e.idf != nil {
			v *= e.idf[i]
		}
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (e *TFIDFEmbedder) bucket(term string) int {
	h := fnv.New32a()
	h.Write([]byte(term))
	return int(h.Sum32() % uint32(e.dims))
}

// Terms lowercases text, splits it into words, drops stop words and returns
// the words followed by adjacent-word bigrams.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}

	terms := make([]string, 0, 2*len(kept))
	terms = append(terms, kept...)
	for i := 0; i+1 < len(kept); i++ {
		terms = append(terms, kept[i]+" "+kept[i+1])
	}
	return terms
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
