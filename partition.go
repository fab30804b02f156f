/*
Copyright © 2021 the adios2nc authors.
This file is part of adios2nc.

adios2nc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

adios2nc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with adios2nc.  If not, see <http://www.gnu.org/licenses/>.
*/

package adios2nc

import "fmt"

// DefaultMinPartition is the smallest leading extent at which a fixed
// variable is split across workers. Smaller variables are written whole
// by rank 0.
const DefaultMinPartition = 50

// Partition returns the share of [0, extent) assigned to worker rank of
// workers. The shares of all workers are contiguous, disjoint and cover
// the whole range; the first extent%workers ranks get one extra index.
// When extent < workers the trailing ranks get empty assignments.
func Partition(extent, workers, rank int) PartitionAssignment {
	if workers < 1 || rank < 0 || rank >= workers {
		panic(fmt.Errorf("adios2nc: invalid partition rank %d of %d workers", rank, workers))
	}
	if extent <= 0 {
		return PartitionAssignment{}
	}
	q, r := extent/workers, extent%workers
	start := rank*q + min(rank, r)
	n := q
	if rank < r {
		n++
	}
	return PartitionAssignment{Start: start, End: start + n}
}

// Work is the share of a conversion carried out by one worker.
type Work struct {
	Rank, Size int

	// Steps is the range of steps this worker transfers for stepped
	// variables.
	Steps PartitionAssignment

	// MinPartition is the smallest leading extent at which fixed
	// variables are split by rows.
	MinPartition int
}

// NewWork returns the work of worker rank of size for a source with the
// given number of steps. A single worker gets all steps.
func NewWork(rank, size, steps, minPartition int) Work {
	return Work{
		Rank:         rank,
		Size:         size,
		Steps:        Partition(steps, size, rank),
		MinPartition: minPartition,
	}
}

// Rows returns the rows of a fixed variable with the given leading extent
// that this worker writes, and false if it writes none of them.
func (w Work) Rows(extent int) (PartitionAssignment, bool) {
	if w.Size <= 1 || extent < w.MinPartition {
		if w.Rank != 0 {
			return PartitionAssignment{}, false
		}
		return PartitionAssignment{Start: 0, End: extent}, extent > 0
	}
	p := Partition(extent, w.Size, w.Rank)
	return p, !p.Empty()
}
