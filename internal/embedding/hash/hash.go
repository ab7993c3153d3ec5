// Package hash is an offline embedder built by feature hashing. Three feature
// families share the buckets: stopword-filtered terms weighted by a sublinear
// tf, adjacent word pairs so word order counts, and a signature of the exact
// text so distinct texts never collapse onto the same vector.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"memchat/internal/textutil"
)

const DefaultDimension = 256

const (
	pairWeight      = 0.5
	signatureWeight = 0.5
	// signatureBuckets independent hashes of the exact text; two texts only
	// collide if every one of them lands on the same signed bucket.
	signatureBuckets = 4
)

type Embedder struct {
	dimension int
}

func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string { return "hash" }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed never fails and never returns the zero vector: text without terms
// still carries its exact-text signature.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	acc := make([]float64, e.dimension)

	tf := make(map[string]int)
	for _, term := range textutil.Terms(text) {
		tf[term]++
	}
	for term, count := range tf {
		e.add(acc, "t:"+term, 1+math.Log(float64(count)))
	}

	words := textutil.Words(text)
	for i := 1; i < len(words); i++ {
		e.add(acc, "p:"+words[i-1]+" "+words[i], pairWeight)
	}

	exact := strings.Join(strings.Fields(text), " ")
	for i := 0; i < signatureBuckets; i++ {
		e.add(acc, "s"+strconv.Itoa(i)+":"+exact, signatureWeight)
	}

	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, e.dimension)
	if norm == 0 {
		// every feature cancelled out in shared buckets
		vec[int(hashOf(exact)>>1)%e.dimension] = 1
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

// add folds one feature into acc. The low hash bit picks a sign so
// collisions tend to cancel out.
func (e *Embedder) add(acc []float64, feature string, w float64) {
	h := hashOf(feature)
	if h&1 == 1 {
		w = -w
	}
	acc[int(h>>1)%e.dimension] += w
}

func hashOf(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
