package eval

import (
	"fmt"
	"math"
	"sort"
)

// PrecisionAtK is the fraction of the first k retrieved docs that are
// relevant.
func PrecisionAtK(retrieved []string, grades map[string]int, k int) float64 {
	if k <= 0 {
		return 0
	}
	cut := min(k, len(retrieved))
	var hits int
	for _, id := range retrieved[:cut] {
		if grades[id] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// RecallAtK is the fraction of relevant docs found in the first k retrieved.
func RecallAtK(retrieved []string, grades map[string]int, k int) float64 {
	if len(grades) == 0 || k <= 0 {
		return 0
	}
	cut := min(k, len(retrieved))
	var hits int
	for _, id := range retrieved[:cut] {
		if grades[id] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(grades))
}

// HitAtK is 1 when any of the first k retrieved docs is relevant.
func HitAtK(retrieved []string, grades map[string]int, k int) float64 {
	cut := min(k, len(retrieved))
	for _, id := range retrieved[:cut] {
		if grades[id] > 0 {
			return 1
		}
	}
	return 0
}

// MRR is the reciprocal rank of the first relevant retrieved doc.
func MRR(retrieved []string, grades map[string]int) float64 {
	for i, id := range retrieved {
		if grades[id] > 0 {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK is the discounted cumulative gain of the first k retrieved docs,
// normalized by the ideal ordering's gain. Gain for rank r (0-based) is
// grade/log2(r+2).
func NDCGAtK(retrieved []string, grades map[string]int, k int) float64 {
	if len(grades) == 0 || k <= 0 {
		return 0
	}

	var dcg float64
	cut := min(k, len(retrieved))
	for i, id := range retrieved[:cut] {
		if g := grades[id]; g > 0 {
			dcg += float64(g) / math.Log2(float64(i+2))
		}
	}

	ideal := make([]int, 0, len(grades))
	for _, g := range grades {
		ideal = append(ideal, g)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ideal)))
	if len(ideal) > k {
		ideal = ideal[:k]
	}

	var idcg float64
	for i, g := range ideal {
		idcg += float64(g) / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// ComputeAll evaluates every metric at each cutoff. Keys are "precision@k",
// "recall@k", "hit@k", "ndcg@k" and "mrr".
func ComputeAll(retrieved []string, grades map[string]int, ks []int) map[string]float64 {
	out := make(map[string]float64, len(ks)*4+1)
	for _, k := range ks {
		out[fmt.Sprintf("precision@%d", k)] = PrecisionAtK(retrieved, grades, k)
		out[fmt.Sprintf("recall@%d", k)] = RecallAtK(retrieved, grades, k)
		out[fmt.Sprintf("hit@%d", k)] = HitAtK(retrieved, grades, k)
		out[fmt.Sprintf("ndcg@%d", k)] = NDCGAtK(retrieved, grades, k)
	}
	out["mrr"] = MRR(retrieved, grades)
	return out
}
