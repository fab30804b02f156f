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
	"sort"
)

// DimNaming selects how destination dimensions are named.
type DimNaming int

const (
	// NameByExtent creates one dimension per distinct axis extent and
	// names it after the extent.
	NameByExtent DimNaming = iota

	// NameBySource uses the dimension names recorded in the source
	// (WRF "Dims" and "_DIM_" attributes), falling back to extent naming
	// for axes without a name.
	NameBySource
)

// ParseDimNaming parses "extent" or "source".
func ParseDimNaming(s string) (DimNaming, error) {
	switch s {
	case "extent", "":
		return NameByExtent, nil
	case "source":
		return NameBySource, nil
	}
	return NameByExtent, fmt.Errorf("adios2nc: invalid dimension naming %q", s)
}

func (n DimNaming) String() string {
	if n == NameBySource {
		return "source"
	}
	return "extent"
}

// extentDimName returns the name of the dimension for an axis of
// length n under NameByExtent.
func extentDimName(n int) string { return fmt.Sprintf("dim%d", n) }

// ResolveDimensions maps the variable shapes in s onto a set of named
// dimensions. It returns the dimensions in creation order and the
// dimensions of each variable, outermost first. The result depends only
// on s, so every worker of a distributed run derives the same names.
func ResolveDimensions(s *Schema, naming DimNaming) ([]*DimensionSpec, map[string][]*DimensionSpec, error) {
	r := &dimResolver{byName: make(map[string]*DimensionSpec)}

	for _, v := range s.Variables {
		if v.Stepped {
			r.step = &DimensionSpec{Name: StepDimName, Len: s.Steps, Unbounded: true}
			r.add(r.step)
			break
		}
	}

	if naming == NameBySource {
		names := make([]string, 0, len(s.DimLengths))
		for name := range s.DimLengths {
			if name != StepDimName {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			if err := r.declare(name, s.DimLengths[name]); err != nil {
				return nil, nil, err
			}
		}
	}

	byVar := make(map[string][]*DimensionSpec, len(s.Variables))
	for _, v := range s.Variables {
		var dims []*DimensionSpec
		if v.Stepped {
			dims = append(dims, r.step)
		}
		for i, n := range v.Shape {
			// A fixed dimension of length 0 would be the record
			// dimension in the classic format.
			if n <= 0 {
				return nil, nil, &DiscoveryError{Op: "resolve dimensions", Variable: v.Name,
					Err: fmt.Errorf("axis %d has extent %d", i, n)}
			}
			name := extentDimName(n)
			if naming == NameBySource && i < len(v.DimHints) {
				name = v.DimHints[i]
			}
			d, err := r.get(name, n)
			if err != nil {
				return nil, nil, &DiscoveryError{Op: "resolve dimensions", Variable: v.Name, Err: err}
			}
			dims = append(dims, d)
		}
		byVar[v.Name] = dims
	}
	return r.dims, byVar, nil
}

type dimResolver struct {
	step   *DimensionSpec
	dims   []*DimensionSpec
	byName map[string]*DimensionSpec
}

func (r *dimResolver) add(d *DimensionSpec) {
	r.dims = append(r.dims, d)
	r.byName[d.Name] = d
}

func (r *dimResolver) declare(name string, n int) error {
	if n <= 0 {
		return &DiscoveryError{Op: "resolve dimensions", Variable: dimLenPrefix + name,
			Err: fmt.Errorf("declared length %d", n)}
	}
	r.add(&DimensionSpec{Name: name, Len: n})
	return nil
}

// get returns the fixed dimension with the given name and extent,
// creating it on first use.
func (r *dimResolver) get(name string, n int) (*DimensionSpec, error) {
	if name == StepDimName {
		return nil, fmt.Errorf("%s is reserved for the step axis", StepDimName)
	}
	d, ok := r.byName[name]
	if !ok {
		d = &DimensionSpec{Name: name, Len: n}
		r.add(d)
		return d, nil
	}
	if d.Len != n {
		return nil, fmt.Errorf("dimension %s has length %d and %d", name, d.Len, n)
	}
	return d, nil
}
