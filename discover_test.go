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

package adios2nc_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/internal/fixture"
)

func TestDiscover(t *testing.T) {
	s, err := adios2nc.Discover(fixture.WRF())
	if err != nil {
		t.Fatal(err)
	}
	if s.Steps != fixture.Steps {
		t.Errorf("steps: %d != %d", s.Steps, fixture.Steps)
	}

	var names []string
	for _, v := range s.Variables {
		names = append(names, v.Name)
	}
	wantNames := []string{"HGT_M", "ITIMESTEP", "P_TOP", "T", "Times", "U10"}
	if !reflect.DeepEqual(names, wantNames) {
		t.Errorf("variables: %v != %v", names, wantNames)
	}

	type varWant struct {
		shape   []int
		stepped bool
		steps   []int
		hints   []string
	}
	wants := map[string]varWant{
		"HGT_M":     {shape: []int{3, 4}, steps: []int{0}, hints: []string{"south_north", "west_east"}},
		"ITIMESTEP": {shape: []int{}, stepped: true, steps: []int{0, 1, 2}, hints: []string{}},
		"P_TOP":     {shape: []int{}, steps: []int{0}},
		"T":         {shape: []int{2, 3, 4}, stepped: true, steps: []int{0, 1, 2}, hints: []string{"bottom_top", "south_north", "west_east"}},
		"Times":     {shape: []int{19}, stepped: true, steps: []int{0, 1, 2}, hints: []string{"DateStrLen"}},
		"U10":       {shape: []int{3, 4}, stepped: true, steps: []int{0, 1, 2}, hints: []string{"south_north", "west_east"}},
	}
	for name, want := range wants {
		v, ok := s.Variable(name)
		if !ok {
			t.Errorf("missing variable %s", name)
			continue
		}
		if len(v.Shape) != len(want.shape) || (len(want.shape) > 0 && !reflect.DeepEqual(v.Shape, want.shape)) {
			t.Errorf("%s shape: %v != %v", name, v.Shape, want.shape)
		}
		if v.Stepped != want.stepped {
			t.Errorf("%s stepped: %v != %v", name, v.Stepped, want.stepped)
		}
		if !reflect.DeepEqual(v.Steps, want.steps) {
			t.Errorf("%s steps: %v != %v", name, v.Steps, want.steps)
		}
		if len(v.DimHints) != len(want.hints) || (len(want.hints) > 0 && !reflect.DeepEqual(v.DimHints, want.hints)) {
			t.Errorf("%s hints: %v != %v", name, v.DimHints, want.hints)
		}
	}
	if v, _ := s.Variable("P_TOP"); !v.Scalar() {
		t.Error("P_TOP should be a scalar")
	}

	var globals []string
	for _, a := range s.Globals {
		globals = append(globals, a.Name)
	}
	if want := []string{"DX", "NUM_LAND_CAT", "TITLE"}; !reflect.DeepEqual(globals, want) {
		t.Errorf("globals: %v != %v", globals, want)
	}

	wantLengths := map[string]int{"Time": 3, "bottom_top": 2, "south_north": 3, "west_east": 4, "DateStrLen": 19}
	if !reflect.DeepEqual(s.DimLengths, wantLengths) {
		t.Errorf("dimension lengths: %v != %v", s.DimLengths, wantLengths)
	}

	tv, _ := s.Variable("T")
	var attrs []string
	for _, a := range tv.Attributes {
		attrs = append(attrs, a.Name)
	}
	if want := []string{"description", "levels", "units"}; !reflect.DeepEqual(attrs, want) {
		t.Errorf("T attributes: %v != %v", attrs, want)
	}
}

func TestDiscoverStepUnion(t *testing.T) {
	src := fixture.WRF()
	// A variable that grows between steps and has no dimension names.
	src.Vars = append(src.Vars, &fixture.Variable{
		Name:   "GROW",
		Type:   adios2nc.Int16,
		Shapes: map[int][]int{0: {2, 5}, 2: {4, 3}},
		Data:   map[int]interface{}{0: make([]int16, 10), 2: make([]int16, 12)},
	})
	s, err := adios2nc.Discover(src)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := s.Variable("GROW")
	if !reflect.DeepEqual(v.Shape, []int{4, 5}) {
		t.Errorf("shape %v", v.Shape)
	}
	if !v.Stepped {
		t.Error("a variable present in two steps should be stepped")
	}
}

func TestDiscoverErrors(t *testing.T) {
	t.Run("metadata", func(t *testing.T) {
		src := fixture.WRF()
		src.FailSchema = true
		_, err := adios2nc.Discover(src)
		var de *adios2nc.DiscoveryError
		if !errors.As(err, &de) {
			t.Fatalf("want DiscoveryError, got %v", err)
		}
	})
	t.Run("hint rank", func(t *testing.T) {
		src := fixture.WRF()
		for i, a := range src.Attrs {
			if a.Name == "U10/Dims" {
				src.Attrs[i].Value = []string{"west_east", "Time"}
			}
		}
		_, err := adios2nc.Discover(src)
		var de *adios2nc.DiscoveryError
		if !errors.As(err, &de) || de.Variable != "U10" {
			t.Fatalf("want DiscoveryError for U10, got %v", err)
		}
	})
	t.Run("dimension length", func(t *testing.T) {
		src := fixture.WRF()
		src.Attrs = append(src.Attrs, adios2nc.Attribute{Name: "_DIM_soil_layers", Value: "four"})
		_, err := adios2nc.Discover(src)
		var de *adios2nc.DiscoveryError
		if !errors.As(err, &de) {
			t.Fatalf("want DiscoveryError, got %v", err)
		}
	})
}

func TestDiscoverSlashedNames(t *testing.T) {
	src := fixture.WRF()
	for _, name := range []string{"chem", "chem/O3"} {
		src.Vars = append(src.Vars, &fixture.Variable{
			Name:   name,
			Type:   adios2nc.Float32,
			Shapes: map[int][]int{0: {2}},
			Data:   map[int]interface{}{0: []float32{1, 2}},
		})
	}
	src.Attrs = append(src.Attrs,
		adios2nc.Attribute{Name: "chem/O3/units", Value: "ppm"},
		adios2nc.Attribute{Name: "chem/units", Value: "none"},
		adios2nc.Attribute{Name: "chem/O3/Dims", Value: []string{"species"}},
	)
	s, err := adios2nc.Discover(src)
	if err != nil {
		t.Fatal(err)
	}
	o3, _ := s.Variable("chem/O3")
	if want := []adios2nc.Attribute{{Name: "units", Value: "ppm"}}; !reflect.DeepEqual(o3.Attributes, want) {
		t.Errorf("chem/O3 attributes %v != %v", o3.Attributes, want)
	}
	if want := []string{"species"}; !reflect.DeepEqual(o3.DimHints, want) {
		t.Errorf("chem/O3 hints %v != %v", o3.DimHints, want)
	}
	chem, _ := s.Variable("chem")
	if want := []adios2nc.Attribute{{Name: "units", Value: "none"}}; !reflect.DeepEqual(chem.Attributes, want) {
		t.Errorf("chem attributes %v != %v", chem.Attributes, want)
	}
	for _, a := range s.Globals {
		if strings.HasPrefix(a.Name, "chem") {
			t.Errorf("%s filed as a global attribute", a.Name)
		}
	}
}
