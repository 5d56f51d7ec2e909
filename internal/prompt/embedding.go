package prompt

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder produces a fixed-length vector for a normalized cue.
type Embedder interface {
	Embed(text string) []float32
}

// EmbedDim is the vector length produced by the hashing embedder.
const EmbedDim = 64

// HashingEmbedder is a deterministic signed token-hashing embedder.
// Each token lands in one bucket with a hash-derived sign, the result
// is L2 normalized. No model weights, no I/O, stable across processes.
type HashingEmbedder struct{}

// NewHashingEmbedder creates the default embedder.
func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{}
}

// Embed hashes the text's tokens into a normalized EmbedDim vector.
func (e *HashingEmbedder) Embed(text string) []float32 {
	vec := make([]float32, EmbedDim)
	for _, token := range strings.Fields(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		bucket := sum % EmbedDim
		if sum&(1<<63) != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}
	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// Cosine returns the cosine similarity of two vectors, 0 when either is
// empty or they disagree in length.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EncodeVector packs a vector as little-endian float32 bytes for blob
// storage.
func EncodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// DecodeVector unpacks a blob written by EncodeVector. Returns nil for
// blobs that are not a whole number of float32s.
func DecodeVector(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
