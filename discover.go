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
	"sort"
	"strings"

	"github.com/spf13/cast"
)

const (
	// StepDimName is the name of the unbounded step dimension.
	StepDimName = "Time"

	// dimsAttr is the per-variable attribute in which WRF records the
	// names of a variable's dimensions, fastest-varying first.
	dimsAttr = "Dims"

	// dimLenPrefix prefixes the global attributes in which WRF records
	// dimension lengths.
	dimLenPrefix = "_DIM_"
)

// Schema is the discovered structure of a source dataset.
type Schema struct {
	// Steps is the total number of steps in the source.
	Steps int

	// Variables holds the variables in name order.
	Variables []*SourceVariable

	// Globals holds the dataset attributes in name order.
	Globals []Attribute

	// DimLengths holds the dimension lengths declared by the source,
	// if any.
	DimLengths map[string]int
}

// Variable returns the named variable.
func (s *Schema) Variable(name string) (*SourceVariable, bool) {
	i := sort.Search(len(s.Variables), func(i int) bool { return s.Variables[i].Name >= name })
	if i < len(s.Variables) && s.Variables[i].Name == name {
		return s.Variables[i], true
	}
	return nil, false
}

// Discover reads the schema of src: its variables with their per-step
// shapes and attributes, and its global attributes.
func Discover(src Source) (*Schema, error) {
	steps, err := src.Steps()
	if err != nil {
		return nil, &DiscoveryError{Op: "count steps", Err: err}
	}
	if steps < 0 {
		return nil, &DiscoveryError{Op: "count steps", Err: fmt.Errorf("negative step count %d", steps)}
	}
	infos, err := src.Variables()
	if err != nil {
		return nil, &DiscoveryError{Op: "list variables", Err: err}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	s := &Schema{
		Steps:      steps,
		Variables:  make([]*SourceVariable, 0, len(infos)),
		DimLengths: make(map[string]int),
	}
	byName := make(map[string]*SourceVariable, len(infos))
	for _, info := range infos {
		if _, dup := byName[info.Name]; dup {
			return nil, &DiscoveryError{Op: "list variables", Variable: info.Name, Err: fmt.Errorf("duplicate variable")}
		}
		v, err := discoverVariable(src, info, steps)
		if err != nil {
			return nil, err
		}
		byName[v.Name] = v
		s.Variables = append(s.Variables, v)
	}

	attrs, err := src.Attributes()
	if err != nil {
		return nil, &DiscoveryError{Op: "list attributes", Err: err}
	}
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	for _, a := range attrs {
		if strings.HasPrefix(a.Name, dimLenPrefix) {
			n, err := dimLength(a)
			if err != nil {
				return nil, &DiscoveryError{Op: "read dimension length", Variable: a.Name, Err: err}
			}
			s.DimLengths[strings.TrimPrefix(a.Name, dimLenPrefix)] = n
			continue
		}
		if v, name := attributeOwner(a.Name, byName); v != nil {
			if name == dimsAttr {
				if v.DimHints, err = dimHints(a); err != nil {
					return nil, &DiscoveryError{Op: "read dimension names", Variable: v.Name, Err: err}
				}
				continue
			}
			v.Attributes = append(v.Attributes, Attribute{Name: name, Value: a.Value})
			continue
		}
		s.Globals = append(s.Globals, a)
	}

	for _, v := range s.Variables {
		if err := setStepped(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// attributeOwner returns the variable an attribute named "<variable>/<name>"
// belongs to, and the name of the attribute. Variable names may contain
// slashes themselves, so the longest matching variable wins. It returns
// nil for global attributes.
func attributeOwner(attr string, byName map[string]*SourceVariable) (*SourceVariable, string) {
	for i := strings.LastIndex(attr, "/"); i > 0; i = strings.LastIndex(attr[:i], "/") {
		if v, ok := byName[attr[:i]]; ok {
			return v, attr[i+1:]
		}
	}
	return nil, ""
}

func discoverVariable(src Source, info VariableInfo, steps int) (*SourceVariable, error) {
	if len(info.Steps) == 0 {
		return nil, &DiscoveryError{Op: "read variable", Variable: info.Name, Err: fmt.Errorf("not available in any step")}
	}
	v := &SourceVariable{
		Name:       info.Name,
		Type:       info.Type,
		Steps:      append([]int(nil), info.Steps...),
		StepShapes: make(map[int][]int, len(info.Steps)),
	}
	sort.Ints(v.Steps)
	for _, step := range v.Steps {
		if step < 0 || step >= steps {
			return nil, &DiscoveryError{Op: "read variable", Variable: v.Name, Err: fmt.Errorf("step %d outside of [0, %d)", step, steps)}
		}
		shape, err := src.Shape(v.Name, step)
		if err != nil {
			return nil, &DiscoveryError{Op: "read shape", Variable: v.Name, Err: err}
		}
		v.StepShapes[step] = shape
		v.Shape = unionShape(v.Shape, shape)
	}
	return v, nil
}

// unionShape returns the elementwise maximum of a and b, with the rank
// of the longer of the two.
func unionShape(a, b []int) []int {
	if len(b) > len(a) {
		a, b = b, a
	}
	out := append([]int(nil), a...)
	for i, n := range b {
		if n > out[i] {
			out[i] = n
		}
	}
	return out
}

// setStepped decides whether v carries the step axis. Source dimension
// hints take precedence; without them a variable is stepped if it is
// available in more than one step.
func setStepped(v *SourceVariable) error {
	if v.DimHints == nil {
		v.Stepped = len(v.Steps) > 1
		return nil
	}
	hints := v.DimHints
	if len(hints) > 0 && hints[0] == StepDimName {
		v.Stepped = true
		hints = hints[1:]
	}
	if len(hints) != len(v.Shape) {
		return &DiscoveryError{Op: "match dimension names", Variable: v.Name,
			Err: fmt.Errorf("names %v do not fit shape %v", v.DimHints, v.Shape)}
	}
	v.DimHints = hints
	return nil
}

// dimHints reads a "Dims" attribute. WRF lists dimensions
// fastest-varying first, so the order is reversed.
func dimHints(a Attribute) ([]string, error) {
	var names []string
	switch v := a.Value.(type) {
	case []string:
		names = append(names, v...)
	case string:
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	default:
		return nil, fmt.Errorf("attribute of type %v is not a list of names", a.Type())
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}

// dimLength reads a "_DIM_" attribute, which holds one integer.
func dimLength(a Attribute) (int, error) {
	var v interface{} = a.Value
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	} else {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice || rv.Len() == 0 {
			return 0, fmt.Errorf("empty value")
		}
		v = rv.Index(0).Interface()
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative length %d", n)
	}
	return n, nil
}
