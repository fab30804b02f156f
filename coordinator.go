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

import "context"

// Coordinator gives a worker its place in a distributed run.
type Coordinator interface {
	// Rank returns the index of this worker, in [0, Size()).
	Rank() int
	// Size returns the number of workers.
	Size() int
	// Barrier returns once every worker has called Barrier with the
	// same name.
	Barrier(ctx context.Context, name string) error
}

// Agreer is implemented by coordinators that can check that every worker
// arrives at a barrier with the same token.
type Agreer interface {
	Agree(ctx context.Context, name string, token []byte) error
}

// Aborter is implemented by coordinators that can release peer workers
// blocked at a barrier when this worker fails.
type Aborter interface {
	Abort(ctx context.Context, cause error) error
}

// SingleProcess is the coordinator for a run with one worker.
type SingleProcess struct{}

// Rank returns 0.
func (SingleProcess) Rank() int { return 0 }

// Size returns 1.
func (SingleProcess) Size() int { return 1 }

// Barrier returns immediately.
func (SingleProcess) Barrier(context.Context, string) error { return nil }
