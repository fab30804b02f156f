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
	"context"
	"fmt"
)

// Destination is an open destination container. Dimensions, variables
// and attributes are declared first; EndDef then freezes the schema and
// data can be written.
type Destination interface {
	CreateDimension(d *DimensionSpec) error
	CreateVariable(v *DestinationVariable) error

	// SetAttribute sets an attribute of the named variable, or a global
	// attribute if variable is "".
	SetAttribute(variable string, a Attribute) error

	// EndDef ends the definition phase.
	EndDef() error

	// WriteRegion writes data into the named variable beginning at
	// start and extending count elements along each axis, including
	// the step axis.
	WriteRegion(variable string, start, count []int, data interface{}) error

	// Close finalizes the container and releases it.
	Close() error

	// Discard releases the container without finalizing it.
	Discard() error
}

// Access describes how the workers of a distributed run share a
// destination.
type Access int

const (
	// PerProcess destinations are private to each worker; every worker
	// creates its own container.
	PerProcess Access = iota
	// SharedRegions destinations are created once and then attached by all
	// workers, which may write disjoint regions concurrently.
	SharedRegions
	// Serialized destinations are created once and then written by one
	// worker at a time.
	Serialized
)

func (a Access) String() string {
	switch a {
	case PerProcess:
		return "per-process"
	case SharedRegions:
		return "shared-regions"
	case Serialized:
		return "serialized"
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

// Store opens destination containers.
type Store interface {
	// Create creates a new container at path, replacing any existing one.
	Create(ctx context.Context, path string) (Destination, error)

	// Attach opens a container at path that was created and defined by
	// another worker.
	Attach(ctx context.Context, path string) (Destination, error)

	Access() Access
}
