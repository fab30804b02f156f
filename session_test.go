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
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/internal/fixture"
)

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func TestConvertDiskless(t *testing.T) {
	src := fixture.WRF()
	log, hook := test.NewNullLogger()
	ds, err := adios2nc.Convert(context.Background(), "wrfout.bp", "wrfout.nc", true,
		adios2nc.WithOpener(src.Opener()), adios2nc.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	if !src.Closed {
		t.Error("source not closed")
	}
	if ds.Path() != "wrfout.nc" {
		t.Errorf("path %q", ds.Path())
	}

	want := []string{"HGT_M", "ITIMESTEP", "P_TOP", "T", "Times", "U10"}
	if have := ds.Variables(); !reflect.DeepEqual(have, want) {
		t.Errorf("variables: %v != %v", have, want)
	}

	t.Run("stepped", func(t *testing.T) {
		v, _ := ds.Variable("T")
		if have, want := v.Shape(), []int{3, 2, 3, 4}; !reflect.DeepEqual(have, want) {
			t.Fatalf("shape %v != %v", have, want)
		}
		values := v.Values().([]float32)
		n := fixture.BottomTop * fixture.SouthNorth * fixture.WestEast
		for step := 0; step < fixture.Steps; step++ {
			for i := 0; i < n; i++ {
				if have, want := values[step*n+i], fixture.Value(step, i); have != want {
					t.Fatalf("step %d element %d: %v != %v", step, i, have, want)
				}
			}
		}
		region, err := v.Read([]int{2, 1, 0, 0}, []int{1, 1, 1, 2})
		if err != nil {
			t.Fatal(err)
		}
		if want := []float32{fixture.Value(2, 12), fixture.Value(2, 13)}; !reflect.DeepEqual(region, want) {
			t.Errorf("region %v != %v", region, want)
		}
	})

	t.Run("char", func(t *testing.T) {
		v, _ := ds.Variable("Times")
		if v.Type() != adios2nc.Char {
			t.Errorf("type %v", v.Type())
		}
		b, err := v.Read([]int{1, 0}, []int{1, fixture.DateStrLen})
		if err != nil {
			t.Fatal(err)
		}
		if have, want := string(b.([]byte)), "2021-06-01_01:00:00"; have != want {
			t.Errorf("%q != %q", have, want)
		}
	})

	t.Run("scalars", func(t *testing.T) {
		v, _ := ds.Variable("ITIMESTEP")
		if have, want := v.Values(), []int32{0, 60, 120}; !reflect.DeepEqual(have, want) {
			t.Errorf("ITIMESTEP %v != %v", have, want)
		}
		p, _ := ds.Variable("P_TOP")
		if len(p.Dimensions()) != 0 || p.Chunk() != nil {
			t.Errorf("P_TOP dimensions %v chunk %v", p.Dimensions(), p.Chunk())
		}
		if have, want := p.Values(), []float32{5000}; !reflect.DeepEqual(have, want) {
			t.Errorf("P_TOP %v != %v", have, want)
		}
		if p.Compression() != (adios2nc.Compression{}) {
			t.Errorf("scalar compressed: %v", p.Compression())
		}
	})

	t.Run("fixed", func(t *testing.T) {
		v, _ := ds.Variable("HGT_M")
		values := v.Values().([]float64)
		if values[0] != 100 || values[11] != 102.75 {
			t.Errorf("HGT_M %v", values)
		}
		if have, want := v.Chunk(), []int{3, 4}; !reflect.DeepEqual(have, want) {
			t.Errorf("chunk %v != %v", have, want)
		}
		if v.Compression() != adios2nc.DefaultCompression {
			t.Errorf("compression %v", v.Compression())
		}
	})

	t.Run("attributes", func(t *testing.T) {
		a, ok := ds.Attribute("TITLE")
		if !ok || a.Value != " OUTPUT FROM WRF V4.2.2 MODEL" {
			t.Errorf("TITLE %v", a)
		}
		v, _ := ds.Variable("T")
		if a, ok := v.Attribute("units"); !ok || a.Value != "K" {
			t.Errorf("T:units %v", a)
		}
		if _, ok := ds.Attribute("_DIM_Time"); ok {
			t.Error("dimension length hints should not be copied")
		}
		d, ok := ds.Dimension("Time")
		if !ok || !d.Unbounded || d.Len != fixture.Steps {
			t.Errorf("Time %+v", d)
		}
	})

	t.Run("progress", func(t *testing.T) {
		var progress []*logrus.Entry
		for _, e := range hook.AllEntries() {
			if e.Message == "variable converted" {
				progress = append(progress, e)
			}
		}
		if len(progress) != 6 {
			t.Fatalf("%d progress records", len(progress))
		}
		last := progress[len(progress)-1]
		if last.Data["done"] != 6 || last.Data["total"] != 6 || last.Data["percent"] != 100.0 {
			t.Errorf("last progress record %v", last.Data)
		}
	})
}

func TestConvertFailure(t *testing.T) {
	src := fixture.WRF()
	src.FailRead = "U10"
	ds, err := adios2nc.Convert(context.Background(), "wrfout.bp", "wrfout.nc", true,
		adios2nc.WithOpener(src.Opener()), adios2nc.WithLogger(quietLogger()))
	if ds != nil {
		t.Error("failed conversion returned a dataset")
	}
	var te *adios2nc.TransferError
	if !errors.As(err, &te) {
		t.Fatalf("want TransferError, got %v", err)
	}
	if te.Op != "read" || te.Variable != "U10" || te.Step != 0 {
		t.Errorf("%+v", te)
	}
	if !errors.Is(err, fixture.ErrInjected) {
		t.Error("cause not wrapped")
	}
	if !src.Closed {
		t.Error("source not closed after failure")
	}
}

func TestConvertFixedChangingShape(t *testing.T) {
	for _, test := range []struct {
		name   string
		shapes map[int][]int
		shape  []int
		want   []float32
	}{
		{
			name:   "grows",
			shapes: map[int][]int{0: {2, 2}, 1: {3, 2}},
			shape:  []int{3, 2},
			want:   []float32{11, 12, 13, 14, 15, 16},
		},
		{
			name:   "shrinks",
			shapes: map[int][]int{0: {3, 2}, 1: {2, 2}},
			shape:  []int{3, 2},
			want:   []float32{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "no full step",
			shapes: map[int][]int{0: {2, 3}, 1: {3, 2}},
			shape:  []int{3, 3},
			want:   []float32{11, 12, 0, 13, 14, 0, 15, 16, 0},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			lu := &fixture.Variable{Name: "LU", Type: adios2nc.Float32, Shapes: test.shapes, Data: map[int]interface{}{}}
			for step, shape := range test.shapes {
				data := make([]float32, shape[0]*shape[1])
				for i := range data {
					data[i] = float32(step*10 + i + 1)
				}
				lu.Data[step] = data
			}
			src := &fixture.Source{
				NumSteps: 2,
				Vars:     []*fixture.Variable{lu},
				Attrs:    []adios2nc.Attribute{{Name: "LU/Dims", Value: []string{"x", "y"}}},
			}
			ds, err := adios2nc.Convert(context.Background(), "wrfout.bp", "wrfout.nc", true,
				adios2nc.WithOpener(src.Opener()), adios2nc.WithLogger(quietLogger()))
			if err != nil {
				t.Fatal(err)
			}
			v, _ := ds.Variable("LU")
			if have := v.Shape(); !reflect.DeepEqual(have, test.shape) {
				t.Fatalf("shape %v != %v", have, test.shape)
			}
			if have := v.Values(); !reflect.DeepEqual(have, test.want) {
				t.Errorf("values %v != %v", have, test.want)
			}
		})
	}
}

func TestConvertOpenFailure(t *testing.T) {
	open := func(context.Context, string) (adios2nc.Source, error) {
		return nil, errors.New("no such dataset")
	}
	_, err := adios2nc.Convert(context.Background(), "missing.bp", "out.nc", true,
		adios2nc.WithOpener(open), adios2nc.WithLogger(quietLogger()))
	var de *adios2nc.DiscoveryError
	if !errors.As(err, &de) || de.Op != "open" {
		t.Errorf("want DiscoveryError, got %v", err)
	}
}

func TestNewSessionBackends(t *testing.T) {
	_, err := adios2nc.NewSession("in.bp", "out.nc", false, adios2nc.WithFormat("hdf9"))
	if !errors.Is(err, adios2nc.ErrUnknownBackend) {
		t.Errorf("unknown format: %v", err)
	}
	_, err = adios2nc.NewSession("in.bp", "out.nc", true, adios2nc.WithSource("grib"))
	if !errors.Is(err, adios2nc.ErrUnknownBackend) {
		t.Errorf("unknown source: %v", err)
	}
	s, err := adios2nc.NewSession("in.bp", "out.nc", false,
		adios2nc.WithFormat(adios2nc.MemoryStoreName), adios2nc.WithOpener(fixture.WRF().Opener()))
	if err != nil {
		t.Fatal(err)
	}
	if s.Mode.Output != adios2nc.FileOutput || s.Mode.Execution != adios2nc.Single {
		t.Errorf("mode %v", s.Mode)
	}
}

func TestSelectMode(t *testing.T) {
	m, err := adios2nc.SelectMode(true, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Output != adios2nc.MemoryOutput || m.Execution != adios2nc.Single || m.Store.Access() != adios2nc.PerProcess {
		t.Errorf("diskless mode %v", m)
	}
	if _, err := adios2nc.SelectMode(false, nil, nil); !errors.Is(err, adios2nc.ErrInvalidMode) {
		t.Errorf("no store: %v", err)
	}
	g := newGroup(2)
	m, err = adios2nc.SelectMode(true, nil, g.worker(1))
	if err != nil {
		t.Fatal(err)
	}
	if m.Execution != adios2nc.Distributed || m.String() != "memory/distributed" {
		t.Errorf("mode %v", m)
	}
	_, err = adios2nc.SelectMode(true, nil, &worker{g: g, rank: 2})
	var ce *adios2nc.CoordinationError
	if !errors.As(err, &ce) || !errors.Is(err, adios2nc.ErrInvalidMode) {
		t.Errorf("rank outside of group: %v", err)
	}
}
