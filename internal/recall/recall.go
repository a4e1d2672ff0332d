// ABOUTME: Per-customer recall of earlier utterances by text similarity
// ABOUTME: In-memory bag-of-words cosine store behind the Store contract

package recall

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
)

// DefaultMaxEntries bounds how many texts are kept per customer.
const DefaultMaxEntries = 500

// Hit is one recalled text with its similarity score in [0, 1].
type Hit struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Store remembers texts per customer and recalls the most similar ones.
type Store interface {
	Remember(ctx context.Context, customerID, text string) error
	Recall(ctx context.Context, customerID, query string, k int) ([]Hit, error)
}

type entry struct {
	text   string
	vector map[string]float64
	norm   float64
	seq    int
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string][]entry // keyed by customer ID, oldest first
	maxEntries int
	seq        int
}

// NewMemoryStore creates an empty store keeping at most maxEntries texts per
// customer; maxEntries <= 0 uses DefaultMaxEntries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		entries:    make(map[string][]entry),
		maxEntries: maxEntries,
	}
}

// Remember stores text for the customer. Blank text is ignored.
func (m *MemoryStore) Remember(ctx context.Context, customerID, text string) error {
	if customerID == "" {
		return errors.New("recall: customer id is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	vec, n := m.vectorize(text)
	if n == 0 {
		return nil
	}
	m.seq++
	list := append(m.entries[customerID], entry{text: text, vector: vec, norm: n, seq: m.seq})
	if len(list) > m.maxEntries {
		list = list[len(list)-m.maxEntries:]
	}
	m.entries[customerID] = list
	return nil
}

// Recall returns up to k texts with positive similarity to query, best
// first; equal scores prefer the newer text.
func (m *MemoryStore) Recall(ctx context.Context, customerID, query string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	qvec, qnorm := m.vectorize(query)
	if qnorm == 0 {
		return nil, nil
	}

	type scored struct {
		hit Hit
		seq int
	}
	var results []scored
	for _, e := range m.entries[customerID] {
		var dot float64
		for tok, w := range qvec {
			dot += w * e.vector[tok]
		}
		if dot == 0 {
			continue
		}
		results = append(results, scored{
			hit: Hit{Text: e.text, Score: dot / (qnorm * e.norm)},
			seq: e.seq,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].hit.Score != results[j].hit.Score {
			return results[i].hit.Score > results[j].hit.Score
		}
		return results[i].seq > results[j].seq
	})
	if len(results) > k {
		results = results[:k]
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = r.hit
	}
	return hits, nil
}

// vectorize returns term counts and the vector norm. A Caser is not safe for
// concurrent use, so each call builds its own.
func (m *MemoryStore) vectorize(text string) (map[string]float64, float64) {
	folded := cases.Fold().String(text)
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	vec := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		vec[tok]++
	}
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	return vec, math.Sqrt(sum)
}

var _ Store = (*MemoryStore)(nil)
