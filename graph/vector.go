package graph

import "math"

// CosineSimilarity calculates cosine similarity between two float32 vectors.
// Returns a value in [-1, 1] where 1 = identical direction, 0 = orthogonal.
// Uses float64 accumulation for precision even with float32 inputs. Vectors
// of mismatched or zero length score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProd, normA, normB float64
	for i := range a {
		dotProd += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProd / (math.Sqrt(normA) * math.Sqrt(normB))
}
