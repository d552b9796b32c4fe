//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package mascot

import (
	"github.com/markkurossi/mascot/env"
	"github.com/markkurossi/mascot/mpcerr"
)

// The triple batch sizes. The sacrifice check's soundness depends on
// the number of triples checked together so triples are only ever
// produced in these sizes. The tables are never extrapolated.
var (
	batchSizes40 = []int{163, 2047, 16389, 233016, 1864191}
	batchSizes64 = []int{63, 511, 7281, 83885, 671088, 5368708}
)

// TriplesToCreate returns the smallest valid triple batch size that
// is at least atLeast for the statistical security parameter ssp. It
// returns a usage error if the request exceeds the largest batch size
// or if ssp is not supported.
func TriplesToCreate(atLeast, ssp int) (int, error) {
	var sizes []int
	switch {
	case ssp < 1:
		return 0, mpcerr.Usagef("invalid statistical security %d", ssp)
	case ssp <= 40:
		sizes = batchSizes40
	case ssp <= env.MaxStatisticalBits:
		sizes = batchSizes64
	default:
		return 0, mpcerr.Usagef("statistical security %d > %d not supported",
			ssp, env.MaxStatisticalBits)
	}
	for _, size := range sizes {
		if size >= atLeast {
			return size, nil
		}
	}
	return 0, mpcerr.Usagef("%d triples exceeds maximum batch size %d for %d bits",
		atLeast, sizes[len(sizes)-1], ssp)
}
