package facematch

import "math"

// DistanceFunc compares two embeddings; smaller means more similar.
type DistanceFunc func(a, b []float32) float64

// EuclideanDistance computes the L2 distance between two embeddings.
// Returns +Inf for mismatched or empty vectors so they never match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}

// DistanceFor returns the distance function for a metric name ("euclidean" or "cosine").
// Unknown names fall back to Euclidean, which matches the reference face model.
func DistanceFor(metric string) DistanceFunc {
	if metric == "cosine" {
		return CosineDistance
	}
	return EuclideanDistance
}

// Confidence maps a distance to a match confidence in [0, 1].
func Confidence(distance float64) float64 {
	return math.Max(0, math.Min(1, 1-distance))
}
