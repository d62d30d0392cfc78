// Package matching solves the rectangular assignment problem with a
// Jonker-Volgenant style shortest augmenting path search. It is exact: the
// returned matching minimizes the summed cost over all one-to-one matchings
// of rows onto columns.
package matching

import (
	"errors"
	"math"
)

var ErrInfeasible = errors.New("matching: no feasible assignment")

// Solve matches every row of the cost matrix to a distinct column so that the
// total cost is minimal. It returns, for each row, the index of its column.
// The matrix may be rectangular but must have at least as many columns as
// rows; otherwise no complete matching exists and ErrInfeasible is returned.
func Solve(cost [][]float64) ([]int, error) {
	n := len(cost)
	if n == 0 {
		return nil, nil
	}
	m := len(cost[0])
	if m < n {
		return nil, ErrInfeasible
	}
	for _, row := range cost {
		if len(row) != m {
			return nil, errors.New("matching: ragged cost matrix")
		}
	}

	// Potentials and matching are 1-indexed; column 0 is the virtual start.
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	matchedRow := make([]int, m+1)
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		matchedRow[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[j0] = true
			i0 := matchedRow[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
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
					u[matchedRow[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if matchedRow[j0] == 0 {
				break
			}
		}

		// Unwind the augmenting path.
		for j0 != 0 {
			j1 := way[j0]
			matchedRow[j0] = matchedRow[j1]
			j0 = j1
		}
	}

	rowToCol := make([]int, n)
	for j := 1; j <= m; j++ {
		if matchedRow[j] > 0 {
			rowToCol[matchedRow[j]-1] = j - 1
		}
	}
	return rowToCol, nil
}

// TotalCost sums the cost of a row-to-column matching produced by Solve.
func TotalCost(cost [][]float64, rowToCol []int) float64 {
	var total float64
	for i, j := range rowToCol {
		total += cost[i][j]
	}
	return total
}
