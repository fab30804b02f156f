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
	"fmt"
	"reflect"
)

// ElementType is the type of the individual elements of a variable or
// attribute.
type ElementType int

// These are the element types that can be carried from a source
// dataset to a destination container.
const (
	Invalid ElementType = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	// Char is a fixed-length character array ([]byte for variable data,
	// string for attributes).
	Char
	// String is an array of variable-length strings. It is only valid
	// for attributes.
	String
)

var elementTypeNames = [...]string{
	Invalid: "invalid",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Char:    "char",
	String:  "string",
}

func (t ElementType) String() string {
	if t < 0 || int(t) >= len(elementTypeNames) {
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
	return elementTypeNames[t]
}

// Size returns the storage size of one element in bytes, or 0 for
// String and Invalid.
func (t ElementType) Size() int {
	switch t {
	case Int8, Uint8, Char:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// Numeric returns whether t holds numbers.
func (t ElementType) Numeric() bool {
	return t >= Int8 && t <= Float64
}

// TypeOf returns the element type of the given value, which must be one
// of the slice types listed for ElementType, a string (Char) or
// []string (String).
func TypeOf(values interface{}) ElementType {
	switch values.(type) {
	case []int8:
		return Int8
	case []uint8:
		return Uint8
	case []int16:
		return Int16
	case []uint16:
		return Uint16
	case []int32:
		return Int32
	case []uint32:
		return Uint32
	case []int64:
		return Int64
	case []uint64:
		return Uint64
	case []float32:
		return Float32
	case []float64:
		return Float64
	case string:
		return Char
	case []string:
		return String
	}
	return Invalid
}

// MakeValues allocates a zeroed slice of n elements of type t.
// Char variables are stored as []byte.
func MakeValues(t ElementType, n int) interface{} {
	switch t {
	case Int8:
		return make([]int8, n)
	case Uint8, Char:
		return make([]uint8, n)
	case Int16:
		return make([]int16, n)
	case Uint16:
		return make([]uint16, n)
	case Int32:
		return make([]int32, n)
	case Uint32:
		return make([]uint32, n)
	case Int64:
		return make([]int64, n)
	case Uint64:
		return make([]uint64, n)
	case Float32:
		return make([]float32, n)
	case Float64:
		return make([]float64, n)
	case String:
		return make([]string, n)
	}
	panic(fmt.Errorf("adios2nc: cannot allocate values of type %v", t))
}

// Len returns the number of elements in values.
func Len(values interface{}) int {
	if s, ok := values.(string); ok {
		return len(s)
	}
	v := reflect.ValueOf(values)
	if v.Kind() != reflect.Slice {
		return 0
	}
	return v.Len()
}

// matchesType reports whether data can be stored in a variable of type t.
func matchesType(t ElementType, data interface{}) bool {
	got := TypeOf(data)
	if t == Char {
		return got == Uint8
	}
	return got == t
}

// Attribute is a named scalar or array value attached to a dataset or a
// variable. Scalars are stored as one-element slices.
type Attribute struct {
	Name  string
	Value interface{}
}

// Type returns the element type of the attribute value.
func (a Attribute) Type() ElementType { return TypeOf(a.Value) }

// findAttribute returns the attribute with the given name.
func findAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// SourceVariable is a variable discovered in a source dataset.
// It is not modified after discovery.
type SourceVariable struct {
	Name string
	Type ElementType

	// Shape holds the fixed extents of the variable, not including the
	// step axis. It is the union of the shapes of all available steps.
	Shape []int

	// Stepped is true if the variable carries the leading unbounded
	// step axis.
	Stepped bool

	// Steps lists the source steps in which the variable is available,
	// in ascending order.
	Steps []int

	// StepShapes holds the shape of the variable at each available step.
	StepShapes map[int][]int

	// DimHints holds source-provided dimension names for the axes in
	// Shape, if the source provides them.
	DimHints []string

	Attributes []Attribute
}

// Scalar returns whether v has no fixed axes and no step axis.
func (v *SourceVariable) Scalar() bool { return len(v.Shape) == 0 && !v.Stepped }

// DimensionSpec is a named destination dimension.
type DimensionSpec struct {
	Name string

	// Len is the fixed extent of the dimension. For the unbounded
	// dimension it is the number of steps in the source.
	Len int

	Unbounded bool
}

// Compression holds the lossless compression settings for a variable.
// A Level of 0 disables compression.
type Compression struct {
	Level   int
	Shuffle bool
}

// DestinationVariable is a variable declared in a destination container.
type DestinationVariable struct {
	Name       string
	SourceName string
	Type       ElementType

	// Dims holds the dimensions of the variable, outermost first.
	// Scalar variables have no dimensions.
	Dims []*DimensionSpec

	// Shape holds the current extents of the variable; for stepped
	// variables Shape[0] is the number of steps.
	Shape []int

	// Chunk holds the chunk shape, or nil for contiguous storage.
	Chunk []int

	Compression Compression
	Attributes  []Attribute

	Source *SourceVariable
}

// Stepped returns whether the leading dimension of v is unbounded.
func (v *DestinationVariable) Stepped() bool {
	return len(v.Dims) > 0 && v.Dims[0].Unbounded
}

// DimNames returns the names of the dimensions of v.
func (v *DestinationVariable) DimNames() []string {
	names := make([]string, len(v.Dims))
	for i, d := range v.Dims {
		names[i] = d.Name
	}
	return names
}

// PartitionAssignment is the half-open index range [Start, End) along a
// partitioned axis assigned to one worker.
type PartitionAssignment struct {
	Start, End int
}

// Len returns the number of indices in the assignment.
func (p PartitionAssignment) Len() int { return p.End - p.Start }

// Empty returns whether the assignment holds no indices.
func (p PartitionAssignment) Empty() bool { return p.End <= p.Start }

// Contains returns whether index i is part of the assignment.
func (p PartitionAssignment) Contains(i int) bool { return i >= p.Start && i < p.End }

func (p PartitionAssignment) String() string { return fmt.Sprintf("[%d,%d)", p.Start, p.End) }

// product returns the product of the given extents (1 for an empty shape).
func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
