package search

import (
	"math"

	"rag-chat-be/pkg/utils"
)

// MaximalMarginalRelevance picks up to k candidate indexes, each time taking
// the one with the best trade-off between similarity to the query and
// dissimilarity to what was already picked. The first pick is the closest
// candidate to the query.
func MaximalMarginalRelevance(query []float32, candidates [][]float32, k int, lambdaMult float64) []int {
	limit := k
	if len(candidates) < limit {
		limit = len(candidates)
	}
	if limit <= 0 {
		return nil
	}

	toQuery := make([]float64, len(candidates))
	best := 0
	for i, c := range candidates {
		toQuery[i] = utils.CosineSimilarity(query, c)
		if toQuery[i] > toQuery[best] {
			best = i
		}
	}

	selected := []int{best}
	picked := map[int]bool{best: true}
	// redundancy[i] is the max similarity of candidate i to anything selected
	redundancy := make([]float64, len(candidates))
	for i := range candidates {
		redundancy[i] = utils.CosineSimilarity(candidates[i], candidates[best])
	}

	for len(selected) < limit {
		next := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := lambdaMult*toQuery[i] - (1-lambdaMult)*redundancy[i]
			if score > bestScore {
				bestScore = score
				next = i
			}
		}
		if next < 0 {
			break
		}

		selected = append(selected, next)
		picked[next] = true
		for i := range candidates {
			if sim := utils.CosineSimilarity(candidates[i], candidates[next]); sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return selected
}
