package embedding

import (
	"hash/fnv"
	"strings"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// hashVocabSize is the bucket count FallbackTokenizer hashes words into. It
// has no relation to the real encoder's vocabulary; it only needs to be
// large enough that two unrelated Spanish words rarely collide.
const hashVocabSize = 30000

// FallbackTokenizer stands in for a proper WordPiece tokenizer when no
// tokenizer.json ships alongside the ONNX model: words are feature-hashed
// into a fixed bucket range rather than looked up in a real subword
// vocabulary. It produces worse embeddings than the model's own tokenizer
// would, but keeps the artifact buildable offline without that asset.
type FallbackTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *FallbackTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	words := splitWords(text)
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = 101 // [CLS]
	attentionMask[0] = 1

	pos := 1
	for _, word := range words {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashText(word) % hashVocabSize)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = 102 // [SEP]
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// splitWords splits text on whitespace and returns non-empty words.
func splitWords(text string) []string {
	var words []string
	word := ""
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if word != "" {
				words = append(words, word)
				word = ""
			}
		} else {
			word += string(r)
		}
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}

// HashText returns a deterministic, non-negative FNV-1a hash of s, case-folded
// first so that bucket assignment does not depend on capitalization. Used both
// as FallbackTokenizer's per-word feature hash and, by MockEmbedder, as the
// seed for a fabricated embedding vector.
func HashText(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(s)))
	return int(h.Sum32() & 0x7fffffff)
}
