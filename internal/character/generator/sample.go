package generator

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// PickAttrs samples up to k distinct items of pool uniformly without
// replacement. The pool is not modified.
func PickAttrs[T any](rng *rand.Rand, pool []T, k int) []T {
	if k <= 0 || len(pool) == 0 {
		return nil
	}
	if k > len(pool) {
		k = len(pool)
	}
	work := append([]T(nil), pool...)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	return work[:k]
}

// composition splits total into parts positive integers, uniformly over all
// compositions.
func composition(rng *rand.Rand, total, parts int) []int {
	if parts <= 1 || total <= 1 {
		return []int{total}
	}
	if parts > total {
		parts = total
	}
	cuts := rng.Perm(total - 1)[:parts-1]
	for i := range cuts {
		cuts[i]++
	}
	sort.Ints(cuts)
	out := make([]int, 0, parts)
	prev := 0
	for _, c := range cuts {
		out = append(out, c-prev)
		prev = c
	}
	return append(out, total-prev)
}

// draw returns a 1-based index drawn from relative weights.
func (g *Generator) draw(weights []float64) int {
	return int(distuv.NewCategorical(weights, g.rng).Rand()) + 1
}

func (g *Generator) drawLevel() int {
	return g.draw(g.levelWeights)
}

func (g *Generator) drawClassCount() int {
	return g.draw(g.classCountWeights)
}

func weightsFromCumulative(cumulative []float64) []float64 {
	if len(cumulative) == 0 {
		return nil
	}
	out := make([]float64, len(cumulative))
	prev := 0.0
	for i, c := range cumulative {
		if c < prev {
			return nil
		}
		out[i] = c - prev
		prev = c
	}
	if !validWeights(out) {
		return nil
	}
	return out
}

func validWeights(weights []float64) bool {
	total := 0.0
	for _, w := range weights {
		if w < 0 {
			return false
		}
		total += w
	}
	return total > 0
}
