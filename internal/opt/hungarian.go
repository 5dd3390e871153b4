package opt

import "math"

// Match computes a maximum-weight assignment for a rectangular weight matrix
// with len(weights) rows and len(weights[0]) columns, rows <= cols. Every row
// is matched; the returned slice maps each row index to its column.
//
// Successive shortest augmenting paths on the negated weights with row and
// column potentials (the Hungarian method), O(n^2*m). Negative weights are
// fine: coverage of every row is a hard constraint, not a profitability
// filter. The result is deterministic for identical input, and equal-weight
// optima are canonicalized so earlier rows take lower column indices.
func Match(weights [][]float64) []int {
	n := len(weights)
	if n == 0 {
		return nil
	}
	m := len(weights[0])
	if n > m {
		return nil
	}

	const inf = math.MaxFloat64
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)   // p[j]: row matched to column j (1-based, 0 = free)
	way := make([]int, m+1) // way[j]: previous column on the alternating path

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = inf
		}
		for {
			used[j0] = true
			i0 := p[j0]
			j1 := 0
			delta := inf
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := -weights[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assign := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] > 0 {
			assign[p[j]-1] = j - 1
		}
	}
	canonicalize(weights, assign)
	return assign
}

// canonicalize swaps column pairs between rows whenever the total weight is
// unchanged and the swap gives the earlier row the lower column index. This
// pins down which of several optimal matchings is returned.
func canonicalize(weights [][]float64, assign []int) {
	const eps = 1e-9
	for changed := true; changed; {
		changed = false
		for a := 0; a < len(assign); a++ {
			for b := a + 1; b < len(assign); b++ {
				ja, jb := assign[a], assign[b]
				if jb >= ja {
					continue
				}
				keep := weights[a][ja] + weights[b][jb]
				swap := weights[a][jb] + weights[b][ja]
				if math.Abs(keep-swap) <= eps {
					assign[a], assign[b] = jb, ja
					changed = true
				}
			}
		}
	}
}

// MatchWeight sums the matrix weight of an assignment produced by Match.
func MatchWeight(weights [][]float64, assign []int) float64 {
	total := 0.0
	for i, j := range assign {
		total += weights[i][j]
	}
	return total
}
