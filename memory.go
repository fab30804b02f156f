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

// MemoryStore creates in-memory (diskless) containers. Each container is
// private to the process that created it.
type MemoryStore struct{}

// Create returns a new empty in-memory container. The path is recorded
// as the name of the dataset but nothing is written to it.
func (MemoryStore) Create(_ context.Context, path string) (Destination, error) {
	return &memoryDestination{ds: newDataset(path)}, nil
}

// Attach fails: in-memory containers cannot be shared between processes.
func (MemoryStore) Attach(_ context.Context, path string) (Destination, error) {
	return nil, fmt.Errorf("adios2nc: attaching to in-memory container %q: %w", path, ErrInvalidMode)
}

// Access returns PerProcess.
func (MemoryStore) Access() Access { return PerProcess }

// Dataset is an in-memory NetCDF-style dataset: named dimensions,
// variables with their data, and attributes. It is what a diskless
// conversion returns.
type Dataset struct {
	path     string
	dims     []*DimensionSpec
	dimIndex map[string]*DimensionSpec
	vars     []*DatasetVariable
	varIndex map[string]*DatasetVariable
	attrs    []Attribute
}

func newDataset(path string) *Dataset {
	return &Dataset{
		path:     path,
		dimIndex: make(map[string]*DimensionSpec),
		varIndex: make(map[string]*DatasetVariable),
	}
}

// Path returns the output path the dataset was created for.
func (d *Dataset) Path() string { return d.path }

// Dimensions returns the dimensions of the dataset in creation order.
func (d *Dataset) Dimensions() []DimensionSpec {
	out := make([]DimensionSpec, len(d.dims))
	for i, dim := range d.dims {
		out[i] = *dim
	}
	return out
}

// Dimension returns the named dimension.
func (d *Dataset) Dimension(name string) (DimensionSpec, bool) {
	dim, ok := d.dimIndex[name]
	if !ok {
		return DimensionSpec{}, false
	}
	return *dim, true
}

// Variables returns the names of the variables in creation order.
func (d *Dataset) Variables() []string {
	out := make([]string, len(d.vars))
	for i, v := range d.vars {
		out[i] = v.name
	}
	return out
}

// Variable returns the named variable.
func (d *Dataset) Variable(name string) (*DatasetVariable, bool) {
	v, ok := d.varIndex[name]
	return v, ok
}

// Attributes returns the global attributes.
func (d *Dataset) Attributes() []Attribute { return append([]Attribute(nil), d.attrs...) }

// Attribute returns the named global attribute.
func (d *Dataset) Attribute(name string) (Attribute, bool) { return findAttribute(d.attrs, name) }

// DatasetVariable is a variable of a Dataset.
type DatasetVariable struct {
	name        string
	typ         ElementType
	dims        []*DimensionSpec
	chunk       []int
	compression Compression
	attrs       []Attribute
	values      interface{}
}

// Name returns the name of the variable.
func (v *DatasetVariable) Name() string { return v.name }

// Type returns the element type of the variable.
func (v *DatasetVariable) Type() ElementType { return v.typ }

// Dimensions returns the dimension names of the variable, outermost first.
func (v *DatasetVariable) Dimensions() []string {
	out := make([]string, len(v.dims))
	for i, d := range v.dims {
		out[i] = d.Name
	}
	return out
}

// Shape returns the extents of the variable.
func (v *DatasetVariable) Shape() []int {
	out := make([]int, len(v.dims))
	for i, d := range v.dims {
		out[i] = d.Len
	}
	return out
}

// Chunk returns the chunk shape of the variable, or nil for contiguous
// storage.
func (v *DatasetVariable) Chunk() []int { return append([]int(nil), v.chunk...) }

// Compression returns the compression settings of the variable.
func (v *DatasetVariable) Compression() Compression { return v.compression }

// Attributes returns the attributes of the variable.
func (v *DatasetVariable) Attributes() []Attribute { return append([]Attribute(nil), v.attrs...) }

// Attribute returns the named attribute of the variable.
func (v *DatasetVariable) Attribute(name string) (Attribute, bool) { return findAttribute(v.attrs, name) }

// Values returns all data of the variable in row-major order. Elements
// that were never written are zero. The returned slice is shared with
// the dataset.
func (v *DatasetVariable) Values() interface{} {
	v.ensure()
	return v.values
}

// Read returns a copy of the region beginning at start and extending
// count elements along each axis.
func (v *DatasetVariable) Read(start, count []int) (interface{}, error) {
	shape := v.Shape()
	if err := CheckRegion(shape, start, count); err != nil {
		return nil, fmt.Errorf("adios2nc: reading %s: %w", v.name, err)
	}
	v.ensure()
	out := MakeValues(v.typ, product(count))
	copyRegion(v.values, shape, start, count, out, false)
	return out, nil
}

func (v *DatasetVariable) ensure() {
	if v.values == nil {
		v.values = MakeValues(v.typ, product(v.Shape()))
	}
}

// memoryDestination builds a Dataset through the Destination interface.
type memoryDestination struct {
	ds      *Dataset
	defined bool
	closed  bool
}

func (m *memoryDestination) define() error {
	switch {
	case m.closed:
		return ErrClosed
	case m.defined:
		return ErrSchemaFrozen
	}
	return nil
}

func (m *memoryDestination) CreateDimension(d *DimensionSpec) error {
	if err := m.define(); err != nil {
		return err
	}
	if _, dup := m.ds.dimIndex[d.Name]; dup {
		return fmt.Errorf("dimension %s already exists", d.Name)
	}
	if d.Unbounded {
		for _, e := range m.ds.dims {
			if e.Unbounded {
				return fmt.Errorf("second unbounded dimension %s", d.Name)
			}
		}
	}
	nd := *d
	m.ds.dims = append(m.ds.dims, &nd)
	m.ds.dimIndex[nd.Name] = &nd
	return nil
}

func (m *memoryDestination) CreateVariable(v *DestinationVariable) error {
	if err := m.define(); err != nil {
		return err
	}
	if _, dup := m.ds.varIndex[v.Name]; dup {
		return fmt.Errorf("variable %s already exists", v.Name)
	}
	if v.Type == String || v.Type == Invalid {
		return fmt.Errorf("%w %v", ErrUnsupportedType, v.Type)
	}
	dv := &DatasetVariable{
		name:        v.Name,
		typ:         v.Type,
		chunk:       append([]int(nil), v.Chunk...),
		compression: v.Compression,
	}
	for _, d := range v.Dims {
		dim, ok := m.ds.dimIndex[d.Name]
		if !ok {
			return fmt.Errorf("dimension %s does not exist", d.Name)
		}
		dv.dims = append(dv.dims, dim)
	}
	m.ds.vars = append(m.ds.vars, dv)
	m.ds.varIndex[dv.name] = dv
	return nil
}

func (m *memoryDestination) SetAttribute(variable string, a Attribute) error {
	if err := m.define(); err != nil {
		return err
	}
	if a.Type() == Invalid {
		return fmt.Errorf("attribute %s: %w %T", a.Name, ErrUnsupportedType, a.Value)
	}
	attrs := &m.ds.attrs
	if variable != "" {
		v, ok := m.ds.varIndex[variable]
		if !ok {
			return fmt.Errorf("variable %s does not exist", variable)
		}
		attrs = &v.attrs
	}
	if _, dup := findAttribute(*attrs, a.Name); dup {
		return fmt.Errorf("attribute %s already exists", a.Name)
	}
	*attrs = append(*attrs, Attribute{Name: a.Name, Value: cloneValues(a.Value)})
	return nil
}

func (m *memoryDestination) EndDef() error {
	if err := m.define(); err != nil {
		return err
	}
	m.defined = true
	return nil
}

func (m *memoryDestination) WriteRegion(variable string, start, count []int, data interface{}) error {
	if m.closed {
		return ErrClosed
	}
	if !m.defined {
		return fmt.Errorf("writing %s before the end of the definition phase", variable)
	}
	v, ok := m.ds.varIndex[variable]
	if !ok {
		return fmt.Errorf("variable %s does not exist", variable)
	}
	if !matchesType(v.typ, data) {
		return fmt.Errorf("writing %T to %s of type %v", data, variable, v.typ)
	}
	shape := v.Shape()
	if err := CheckRegion(shape, start, count); err != nil {
		return err
	}
	if n := Len(data); n != product(count) {
		return fmt.Errorf("got %d elements for a region of %d", n, product(count))
	}
	v.ensure()
	copyRegion(v.values, shape, start, count, data, true)
	return nil
}

// Close ends writing. The dataset stays readable.
func (m *memoryDestination) Close() error {
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return nil
}

// Discard drops the data held by the dataset.
func (m *memoryDestination) Discard() error {
	m.closed = true
	for _, v := range m.ds.vars {
		v.values = nil
	}
	return nil
}
