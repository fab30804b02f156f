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

// Output is where converted data goes.
type Output int

const (
	// FileOutput writes a persistent container.
	FileOutput Output = iota
	// MemoryOutput builds an in-memory Dataset.
	MemoryOutput
)

func (o Output) String() string {
	if o == MemoryOutput {
		return "memory"
	}
	return "file"
}

// Execution is how many workers take part in a conversion.
type Execution int

const (
	// Single is a conversion by one process.
	Single Execution = iota
	// Distributed is a conversion shared by several processes.
	Distributed
)

func (e Execution) String() string {
	if e == Distributed {
		return "distributed"
	}
	return "single"
}

// Mode is the output target and execution model of a conversion.
type Mode struct {
	Output    Output
	Execution Execution

	Store       Store
	Coordinator Coordinator
}

// SelectMode chooses the store and execution model. Diskless output
// uses the in-memory store; otherwise store is used. The execution
// model follows the size of the coordinator.
func SelectMode(diskless bool, store Store, c Coordinator) (Mode, error) {
	if c == nil {
		c = SingleProcess{}
	}
	size, rank := c.Size(), c.Rank()
	if size < 1 || rank < 0 || rank >= size {
		return Mode{}, &CoordinationError{Barrier: "start", Rank: rank,
			Err: fmt.Errorf("%w: rank %d of %d workers", ErrInvalidMode, rank, size)}
	}
	m := Mode{Output: FileOutput, Execution: Single, Store: store, Coordinator: c}
	if diskless {
		m.Output = MemoryOutput
		m.Store = MemoryStore{}
	}
	if m.Store == nil {
		return Mode{}, fmt.Errorf("adios2nc: no destination store: %w", ErrInvalidMode)
	}
	if size > 1 {
		m.Execution = Distributed
	}
	return m, nil
}

// creator reports whether the worker creates and defines its own
// container rather than attaching to one made by rank 0.
func (m Mode) creator() bool {
	return m.Coordinator.Rank() == 0 || m.Store.Access() == PerProcess
}

func (m Mode) String() string {
	return fmt.Sprintf("%v/%v", m.Output, m.Execution)
}
