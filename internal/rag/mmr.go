package rag

import "math"

// maximalMarginalRelevance greedily selects k results from candidates,
// balancing relevance to the query against redundancy with what was already
// selected:
//
//	score = lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// Candidates must be ordered by descending relevance. Ties go to the earlier
// candidate, so lambda=1 reproduces the input order exactly and lambda=0
// maximizes diversity among the selected set.
func maximalMarginalRelevance(candidates []Result, k int, lambda float64) []Result {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return nil
	}

	selected := make([]Result, 0, k)
	picked := make([]bool, len(candidates))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)

		for i, c := range candidates {
			if picked[i] {
				continue
			}

			penalty := 0.0
			for _, s := range selected {
				if sim := cosineSimilarity(c.Embedding, s.Embedding); sim > penalty {
					penalty = sim
				}
			}

			score := lambda*float64(c.Similarity) - (1-lambda)*penalty
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		picked[best] = true
		selected = append(selected, candidates[best])
	}

	return selected
}

// cosineSimilarity computes cosine similarity between two vectors.
// chromem stores normalized vectors, but the norms are computed anyway so
// the function is correct for arbitrary input (tests use raw vectors).
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
