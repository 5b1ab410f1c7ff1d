package embedding

import (
	"container/list"
	"strings"
	"sync"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tokenizer"
)

// ChunkEmbeddingCache is an LRU cache of encoder output keyed not by the raw
// request text but by its normalized token sequence. Query expansion (C6)
// often hands the encoder several variants of the same question that differ
// only in punctuation, case, accents, or stopwords ("cuanto es el viatico"
// vs "¿Cuánto es el viático?"); collapsing them onto one cache key means the
// ONNX forward pass only actually runs once per distinct sequence of
// significant words, not once per surface form. Word order is part of the
// key: reordered variants get separate slots.
type ChunkEmbeddingCache struct {
	maxEntries int
	index      map[string]*list.Element
	order      *list.List
	mu         sync.RWMutex
}

type embeddingSlot struct {
	key    string
	vector []float32
}

// NewEmbeddingCache creates a cache holding at most maxEntries distinct
// normalized keys.
func NewEmbeddingCache(maxEntries int) *ChunkEmbeddingCache {
	return &ChunkEmbeddingCache{
		maxEntries: maxEntries,
		index:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the cached embedding for text, if a slot exists for its
// normalized key.
func (c *ChunkEmbeddingCache) Get(text string) ([]float32, bool) {
	key := embeddingKey(text)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if elem, ok := c.index[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*embeddingSlot).vector, true
	}
	return nil, false
}

// Set stores vector under text's normalized key, evicting the
// least-recently-used slot once the cache is at capacity.
func (c *ChunkEmbeddingCache) Set(text string, vector []float32) {
	key := embeddingKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*embeddingSlot).vector = vector
		return
	}

	elem := c.order.PushFront(&embeddingSlot{key: key, vector: vector})
	c.index[key] = elem

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*embeddingSlot).key)
		}
	}
}

// embeddingKey folds text down to the same normalized token stream the
// lexical indexes query against, so variants that are lexically equivalent
// share one cache slot. Text that tokenizes to nothing (pure punctuation,
// a lone stopword) falls back to the trimmed lowercase text rather than
// colliding every such query onto a single empty-string slot.
func embeddingKey(text string) string {
	if toks := tokenizer.Tokenize(text); len(toks) > 0 {
		return tokenizer.Join(toks)
	}
	return strings.ToLower(strings.TrimSpace(text))
}
