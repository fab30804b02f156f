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

// Package fixture provides an in-memory source dataset laid out the way
// WRF writes its ADIOS2 output.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"sort"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// ErrInjected is returned by reads of the variable named in
// Source.FailRead.
var ErrInjected = errors.New("injected read failure")

// Variable is a variable of an in-memory Source.
type Variable struct {
	Name string
	Type adios2nc.ElementType

	// Shapes and Data hold the shape and row-major data of the
	// variable at each step in which it is available.
	Shapes map[int][]int
	Data   map[int]interface{}
}

// Source is an in-memory adios2nc.Source.
type Source struct {
	NumSteps   int
	Vars       []*Variable
	Attrs      []adios2nc.Attribute
	FailRead   string
	FailSchema bool

	Reads  int
	Closed bool
}

// Opener returns an opener that always returns s.
func (s *Source) Opener() adios2nc.Opener {
	return func(context.Context, string) (adios2nc.Source, error) {
		s.Closed = false
		return s, nil
	}
}

// Variable returns the named variable.
func (s *Source) Variable(name string) *Variable {
	for _, v := range s.Vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Steps implements adios2nc.Source.
func (s *Source) Steps() (int, error) {
	if s.FailSchema {
		return 0, errors.New("corrupt metadata")
	}
	return s.NumSteps, nil
}

// Variables implements adios2nc.Source.
func (s *Source) Variables() ([]adios2nc.VariableInfo, error) {
	out := make([]adios2nc.VariableInfo, len(s.Vars))
	for i, v := range s.Vars {
		steps := make([]int, 0, len(v.Shapes))
		for step := range v.Shapes {
			steps = append(steps, step)
		}
		sort.Ints(steps)
		out[i] = adios2nc.VariableInfo{Name: v.Name, Type: v.Type, Steps: steps}
	}
	return out, nil
}

// Shape implements adios2nc.Source.
func (s *Source) Shape(name string, step int) ([]int, error) {
	v := s.Variable(name)
	if v == nil {
		return nil, fmt.Errorf("no variable %s", name)
	}
	shape, ok := v.Shapes[step]
	if !ok {
		return nil, fmt.Errorf("variable %s not in step %d", name, step)
	}
	return append([]int(nil), shape...), nil
}

// Attributes implements adios2nc.Source.
func (s *Source) Attributes() ([]adios2nc.Attribute, error) {
	return append([]adios2nc.Attribute(nil), s.Attrs...), nil
}

// Read implements adios2nc.Source.
func (s *Source) Read(name string, step int, start, count []int) (interface{}, error) {
	s.Reads++
	if name == s.FailRead {
		return nil, ErrInjected
	}
	v := s.Variable(name)
	if v == nil {
		return nil, fmt.Errorf("no variable %s", name)
	}
	data, ok := v.Data[step]
	if !ok {
		return nil, fmt.Errorf("variable %s not in step %d", name, step)
	}
	if v.Type == adios2nc.Char {
		return readChars(data.([]byte), v.Shapes[step], start, count)
	}
	return adios2nc.ExtractRegion(data, v.Shapes[step], start, count)
}

func readChars(data []byte, shape, start, count []int) (interface{}, error) {
	if len(shape) != 1 || len(start) != 1 || len(count) != 1 {
		return nil, fmt.Errorf("character data must be one-dimensional")
	}
	out := make([]byte, count[0])
	if start[0] < len(data) {
		copy(out, data[start[0]:])
	}
	return out, nil
}

// Close implements adios2nc.Source.
func (s *Source) Close() error {
	s.Closed = true
	return nil
}

// Dimension lengths of the WRF sample.
const (
	Steps      = 3
	BottomTop  = 2
	SouthNorth = 3
	WestEast   = 4
	DateStrLen = 19
)

// Value returns the value of element i at the given step of the float
// variables of the WRF sample.
func Value(step, i int) float32 { return float32(step*1000+i) + 0.5 }

// WRF returns a small dataset in the layout of WRF ADIOS2 output:
//
//	T          float32  (Time, bottom_top, south_north, west_east)
//	U10        float32  (Time, south_north, west_east)
//	ITIMESTEP  int32    (Time)
//	Times      char     (Time, DateStrLen)
//	HGT_M      float64  (south_north, west_east), written once
//	P_TOP      float32  scalar, written once
//
// with global attributes, per-variable attributes (T/levels is an
// array), "Dims" hints and "_DIM_" lengths.
func WRF() *Source {
	s := &Source{NumSteps: Steps}
	t := &Variable{Name: "T", Type: adios2nc.Float32, Shapes: map[int][]int{}, Data: map[int]interface{}{}}
	u := &Variable{Name: "U10", Type: adios2nc.Float32, Shapes: map[int][]int{}, Data: map[int]interface{}{}}
	it := &Variable{Name: "ITIMESTEP", Type: adios2nc.Int32, Shapes: map[int][]int{}, Data: map[int]interface{}{}}
	times := &Variable{Name: "Times", Type: adios2nc.Char, Shapes: map[int][]int{}, Data: map[int]interface{}{}}
	for step := 0; step < Steps; step++ {
		t.Shapes[step] = []int{BottomTop, SouthNorth, WestEast}
		t.Data[step] = floats(step, BottomTop*SouthNorth*WestEast)
		u.Shapes[step] = []int{SouthNorth, WestEast}
		u.Data[step] = floats(step, SouthNorth*WestEast)
		it.Shapes[step] = []int{}
		it.Data[step] = []int32{int32(step * 60)}
		times.Shapes[step] = []int{DateStrLen}
		times.Data[step] = []byte(fmt.Sprintf("2021-06-01_%02d:00:00", step))
	}
	hgt := &Variable{Name: "HGT_M", Type: adios2nc.Float64,
		Shapes: map[int][]int{0: {SouthNorth, WestEast}},
		Data:   map[int]interface{}{0: float64s(SouthNorth * WestEast)},
	}
	ptop := &Variable{Name: "P_TOP", Type: adios2nc.Float32,
		Shapes: map[int][]int{0: {}},
		Data:   map[int]interface{}{0: []float32{5000}},
	}
	s.Vars = []*Variable{t, u, it, times, hgt, ptop}
	s.Attrs = []adios2nc.Attribute{
		{Name: "TITLE", Value: " OUTPUT FROM WRF V4.2.2 MODEL"},
		{Name: "DX", Value: []float32{30000}},
		{Name: "NUM_LAND_CAT", Value: []int32{21}},
		{Name: "_DIM_Time", Value: []int32{Steps}},
		{Name: "_DIM_bottom_top", Value: []int32{BottomTop}},
		{Name: "_DIM_south_north", Value: []int32{SouthNorth}},
		{Name: "_DIM_west_east", Value: []int32{WestEast}},
		{Name: "_DIM_DateStrLen", Value: []int32{DateStrLen}},
		{Name: "T/Dims", Value: []string{"west_east", "south_north", "bottom_top", "Time"}},
		{Name: "T/units", Value: "K"},
		{Name: "T/description", Value: "perturbation potential temperature theta-t0"},
		{Name: "T/levels", Value: []float32{0.995, 0.985}},
		{Name: "U10/Dims", Value: []string{"west_east", "south_north", "Time"}},
		{Name: "U10/units", Value: "m s-1"},
		{Name: "U10/FieldType", Value: []int32{104}},
		{Name: "ITIMESTEP/Dims", Value: []string{"Time"}},
		{Name: "Times/Dims", Value: []string{"DateStrLen", "Time"}},
		{Name: "HGT_M/Dims", Value: []string{"west_east", "south_north"}},
		{Name: "HGT_M/units", Value: "m"},
		{Name: "P_TOP/Dims", Value: []string{}},
		{Name: "P_TOP/units", Value: "Pa"},
	}
	return s
}

func floats(step, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = Value(step, i)
	}
	return out
}

func float64s(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 0.25*float64(i)
	}
	return out
}
