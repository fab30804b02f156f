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

// VariableInfo is the raw description of a variable as reported by a
// Source.
type VariableInfo struct {
	Name string
	Type ElementType
	// Steps lists the steps in which the variable is available.
	Steps []int
}

// Source is a read-only handle to a stepped array dataset, such as an
// ADIOS2 BP dataset.
type Source interface {
	// Steps returns the total number of steps in the dataset.
	Steps() (int, error)

	// Variables returns all variables in the dataset.
	Variables() ([]VariableInfo, error)

	// Shape returns the global shape of the named variable at the
	// given step, not including the step axis.
	Shape(name string, step int) ([]int, error)

	// Attributes returns all attributes in the dataset. Attributes
	// that belong to a variable are named "variable/attribute".
	Attributes() ([]Attribute, error)

	// Read reads the region of the named variable at the given step
	// beginning at start and extending count elements along each axis.
	// It returns exactly the product of count elements. Character
	// data is returned as zero-padded []byte.
	Read(name string, step int, start, count []int) (interface{}, error)

	Close() error
}

// An Opener opens the source dataset at path.
type Opener func(ctx context.Context, path string) (Source, error)
