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

import (
	"errors"
	"fmt"
)

var (
	// ErrNameCollision is returned when two distinct source names map to
	// the same destination name after rewriting.
	ErrNameCollision = errors.New("name collision after rewriting")
	// ErrUnsupportedType is returned by a destination that cannot store an
	// element type.
	ErrUnsupportedType = errors.New("unsupported element type")
	// ErrNotCompiled is returned by backends that were built without
	// their native library.
	ErrNotCompiled = errors.New("backend not compiled into this binary")
	// ErrUnknownBackend is returned when no source or store is registered
	// under a requested name.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrSchemaFrozen is returned when the schema of a destination is
	// modified after EndDef or through an attached handle.
	ErrSchemaFrozen = errors.New("destination schema is frozen")
	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("handle is closed")
	// ErrInvalidMode is returned for an unusable combination of options.
	ErrInvalidMode = errors.New("invalid conversion mode")
	// ErrRankMismatch is returned for a variable whose number of axes
	// changes between steps.
	ErrRankMismatch = errors.New("variable rank varies between steps")
	// ErrPeerAborted is returned from a barrier when another worker has
	// given up on the run.
	ErrPeerAborted = errors.New("a peer worker aborted the run")
	// ErrBarrierMismatch is returned when workers arrive at a barrier
	// with different schema fingerprints.
	ErrBarrierMismatch = errors.New("workers disagree at barrier")
)

// DiscoveryError is returned when the schema of a source dataset cannot be
// read. No destination has been touched when it occurs.
type DiscoveryError struct {
	Op       string
	Variable string
	Err      error
}

func (e *DiscoveryError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("adios2nc: discovery: %s %q: %v", e.Op, e.Variable, e.Err)
	}
	return fmt.Sprintf("adios2nc: discovery: %s: %v", e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// SchemaError is returned when the destination schema cannot be built.
// No data has been transferred when it occurs.
type SchemaError struct {
	Op   string
	Name string
	Err  error
}

func (e *SchemaError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("adios2nc: schema: %s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("adios2nc: schema: %s: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// TransferError is returned when reading from the source or writing to the
// destination fails during data transfer. Step is -1 for variables
// without a step axis.
type TransferError struct {
	Op       string
	Variable string
	Step     int
	Err      error
}

func (e *TransferError) Error() string {
	if e.Step >= 0 {
		return fmt.Sprintf("adios2nc: transfer: %s %q step %d: %v", e.Op, e.Variable, e.Step, e.Err)
	}
	return fmt.Sprintf("adios2nc: transfer: %s %q: %v", e.Op, e.Variable, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// CoordinationError is returned when a worker fails to pass a collective
// barrier.
type CoordinationError struct {
	Barrier string
	Rank    int
	Err     error
}

func (e *CoordinationError) Error() string {
	return fmt.Sprintf("adios2nc: coordination: rank %d at barrier %q: %v", e.Rank, e.Barrier, e.Err)
}

func (e *CoordinationError) Unwrap() error { return e.Err }
