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

	"github.com/zeebo/xxh3"
)

// DefaultCompression is the compression applied to non-scalar variables
// unless configured otherwise.
var DefaultCompression = Compression{Level: 4, Shuffle: true}

// Layout is the complete schema of a destination container.
type Layout struct {
	// Steps is the number of source steps.
	Steps      int
	Dimensions []*DimensionSpec
	Variables  []*DestinationVariable
	Globals    []Attribute
}

// Variable returns the destination variable with the given name.
func (l *Layout) Variable(name string) (*DestinationVariable, bool) {
	for _, v := range l.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Fingerprint returns a hash of the layout. Two workers that derived the
// same layout from the same source get the same fingerprint.
func (l *Layout) Fingerprint() uint64 {
	h := xxh3.New()
	fmt.Fprintf(h, "steps %d\n", l.Steps)
	for _, d := range l.Dimensions {
		fmt.Fprintf(h, "dim %q %d %t\n", d.Name, d.Len, d.Unbounded)
	}
	for _, v := range l.Variables {
		fmt.Fprintf(h, "var %q %q %v %q %v %v %+v\n", v.Name, v.SourceName, v.Type, v.DimNames(), v.Shape, v.Chunk, v.Compression)
		for _, a := range v.Attributes {
			fmt.Fprintf(h, "att %q %q %v %#v\n", v.Name, a.Name, a.Type(), a.Value)
		}
	}
	for _, a := range l.Globals {
		fmt.Fprintf(h, "att \"\" %q %v %#v\n", a.Name, a.Type(), a.Value)
	}
	return h.Sum64()
}

// PlanOptions holds the choices that shape a layout.
type PlanOptions struct {
	Naming      DimNaming
	Compression Compression
}

// Plan derives the destination layout for s. It does not touch any
// destination, and its result depends only on s and opts.
func Plan(s *Schema, opts PlanOptions) (*Layout, error) {
	for _, sv := range s.Variables {
		if err := checkVariable(sv); err != nil {
			return nil, err
		}
	}
	dims, byVar, err := ResolveDimensions(s, opts.Naming)
	if err != nil {
		return nil, err
	}
	l := &Layout{Steps: s.Steps}

	dimNames := newNameTable("dimension")
	renamed := make(map[*DimensionSpec]*DimensionSpec, len(dims))
	for _, d := range dims {
		name, err := dimNames.add(d.Name)
		if err != nil {
			return nil, err
		}
		nd := &DimensionSpec{Name: name, Len: d.Len, Unbounded: d.Unbounded}
		renamed[d] = nd
		l.Dimensions = append(l.Dimensions, nd)
	}

	varNames := newNameTable("variable")
	for _, sv := range s.Variables {
		name, err := varNames.add(sv.Name)
		if err != nil {
			return nil, err
		}
		v := &DestinationVariable{
			Name:       name,
			SourceName: sv.Name,
			Type:       sv.Type,
			Source:     sv,
		}
		for _, d := range byVar[sv.Name] {
			nd := renamed[d]
			v.Dims = append(v.Dims, nd)
			v.Shape = append(v.Shape, nd.Len)
		}
		if len(v.Dims) > 0 {
			v.Chunk = defaultChunk(v.Dims)
			v.Compression = opts.Compression
		}
		if v.Attributes, err = copyAttributes("attribute of "+sv.Name, sv.Attributes); err != nil {
			return nil, err
		}
		l.Variables = append(l.Variables, v)
	}

	if l.Globals, err = copyAttributes("global attribute", s.Globals); err != nil {
		return nil, err
	}
	return l, nil
}

// checkVariable rejects variables that no destination can hold: those
// of an unsupported element type and those whose rank changes between
// steps.
func checkVariable(sv *SourceVariable) error {
	switch sv.Type {
	case Invalid, String:
		return &SchemaError{Op: "plan variable", Name: sv.Name, Err: fmt.Errorf("%w %v", ErrUnsupportedType, sv.Type)}
	}
	for _, step := range sv.Steps {
		if n := len(sv.StepShapes[step]); n != len(sv.Shape) {
			return &SchemaError{Op: "plan variable", Name: sv.Name,
				Err: fmt.Errorf("%w: step %d has %d axes, not %d", ErrRankMismatch, step, n, len(sv.Shape))}
		}
	}
	return nil
}

// defaultChunk returns a chunk shape covering the full extent of each
// fixed dimension and one step of the unbounded dimension.
func defaultChunk(dims []*DimensionSpec) []int {
	chunk := make([]int, len(dims))
	for i, d := range dims {
		if d.Unbounded {
			chunk[i] = 1
		} else {
			chunk[i] = d.Len
		}
	}
	return chunk
}

func copyAttributes(namespace string, attrs []Attribute) ([]Attribute, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	names := newNameTable(namespace)
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		if a.Type() == Invalid {
			return nil, &SchemaError{Op: "plan " + namespace, Name: a.Name, Err: fmt.Errorf("%w %T", ErrUnsupportedType, a.Value)}
		}
		name, err := names.add(a.Name)
		if err != nil {
			return nil, err
		}
		out[i] = Attribute{Name: name, Value: cloneValues(a.Value)}
	}
	return out, nil
}

// cloneValues returns a copy of a slice value. Strings are returned as is.
func cloneValues(values interface{}) interface{} {
	v := reflect.ValueOf(values)
	if v.Kind() != reflect.Slice {
		return values
	}
	c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(c, v)
	return c.Interface()
}

// Apply declares the layout in dst: dimensions first, then variables,
// then global and variable attributes. It ends the definition phase of
// dst.
func Apply(dst Destination, l *Layout) error {
	for _, d := range l.Dimensions {
		if err := dst.CreateDimension(d); err != nil {
			return &SchemaError{Op: "create dimension", Name: d.Name, Err: err}
		}
	}
	for _, v := range l.Variables {
		if err := dst.CreateVariable(v); err != nil {
			return &SchemaError{Op: "create variable", Name: v.Name, Err: err}
		}
	}
	for _, a := range l.Globals {
		if err := dst.SetAttribute("", a); err != nil {
			return &SchemaError{Op: "set global attribute", Name: a.Name, Err: err}
		}
	}
	for _, v := range l.Variables {
		for _, a := range v.Attributes {
			if err := dst.SetAttribute(v.Name, a); err != nil {
				return &SchemaError{Op: "set attribute", Name: v.Name + ":" + a.Name, Err: err}
			}
		}
	}
	if err := dst.EndDef(); err != nil {
		return &SchemaError{Op: "end definition", Err: err}
	}
	return nil
}
