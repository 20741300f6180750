package route

import (
	"fmt"
	"math"
)

// Chunk is a contiguous piece of a route, bounded by an arc-length span of
// the parent route.
type Chunk struct {
	Index int     `json:"index"`
	Start float64 `json:"start_meters"`
	End   float64 `json:"end_meters"`
	Route *Route  `json:"-"`
}

// Segment splits a route into ceil(length/maxChunkLength) chunks. Each chunk
// extends overlap meters past every seam it touches, so adjacent chunks share
// 2*overlap meters around the seam. A zero-length route yields a single chunk
// covering the whole route.
func Segment(r *Route, maxChunkLength, overlap float64) ([]Chunk, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil route", ErrInvalidRoute)
	}
	if !(maxChunkLength > 0) || math.IsInf(maxChunkLength, 0) {
		return nil, fmt.Errorf("%w: chunk length must be positive, got %v", ErrInvalidParameter, maxChunkLength)
	}
	if !(overlap >= 0) || math.IsInf(overlap, 0) {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %v", ErrInvalidParameter, overlap)
	}

	length := r.Length()
	if length == 0 {
		return []Chunk{{Index: 0, Start: 0, End: 0, Route: r}}, nil
	}

	n := int(math.Ceil(length / maxChunkLength))
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := math.Max(0, float64(i)*maxChunkLength-overlap)
		end := math.Min(length, float64(i+1)*maxChunkLength+overlap)

		sub, err := r.SliceByArcLength(start, end)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		chunks = append(chunks, Chunk{Index: i, Start: start, End: end, Route: sub})
	}
	return chunks, nil
}
