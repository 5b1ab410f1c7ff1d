// Package chunkstore holds the immutable, in-memory collection of
// retrievable text chunks addressed by dense integer id.
package chunkstore

import "fmt"

// Chunk is a unit of retrievable evidence.
type Chunk struct {
	ID       uint32
	Text     string
	Title    string
	Metadata map[string]any
	// Tokens is the precomputed token sequence used by the BM25 index.
	Tokens []string
}

// ErrIndexOutOfRange is returned by Get for an id outside [0, N).
type ErrIndexOutOfRange struct {
	ID uint32
	N  int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("chunkstore: id %d out of range [0, %d)", e.ID, e.N)
}

// Store is an immutable, contiguous vector of chunks indexed by id. No hash
// lookup: ids are dense in [0, N) and the backing slice is addressed
// directly.
type Store struct {
	chunks []Chunk
}

// New builds a Store from chunks already sorted by ascending, dense id.
// The caller (the Index Loader, C11) owns construction; once built the
// store is never mutated.
func New(chunks []Chunk) *Store {
	return &Store{chunks: chunks}
}

// Get returns the chunk with the given id, or ErrIndexOutOfRange.
func (s *Store) Get(id uint32) (*Chunk, error) {
	if int(id) >= len(s.chunks) {
		return nil, &ErrIndexOutOfRange{ID: id, N: len(s.chunks)}
	}
	return &s.chunks[id], nil
}

// Len returns N, the number of chunks in the store.
func (s *Store) Len() int {
	return len(s.chunks)
}

// Iter calls fn for every chunk in ascending id order. Iteration stops early
// if fn returns false.
func (s *Store) Iter(fn func(*Chunk) bool) {
	for i := range s.chunks {
		if !fn(&s.chunks[i]) {
			return
		}
	}
}
