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
	"reflect"
	"testing"
)

func TestContiguous(t *testing.T) {
	shape := []int{3, 4, 5}
	tests := []struct {
		start, count []int
		want         bool
	}{
		{start: []int{0, 0, 0}, count: []int{3, 4, 5}, want: true},
		{start: []int{1, 0, 0}, count: []int{2, 4, 5}, want: true},
		{start: []int{1, 2, 0}, count: []int{1, 2, 5}, want: true},
		{start: []int{1, 2, 1}, count: []int{1, 1, 3}, want: true},
		{start: []int{0, 1, 0}, count: []int{2, 2, 5}, want: false},
		{start: []int{0, 0, 1}, count: []int{1, 4, 3}, want: false},
	}
	for _, test := range tests {
		if have := Contiguous(shape, test.start, test.count); have != test.want {
			t.Errorf("Contiguous(%v, %v): %v != %v", test.start, test.count, have, test.want)
		}
	}
}

func TestCheckRegion(t *testing.T) {
	if err := CheckRegion([]int{2, 3}, []int{1, 0}, []int{1, 3}); err != nil {
		t.Error(err)
	}
	if err := CheckRegion([]int{2, 3}, []int{1, 1}, []int{1, 3}); err == nil {
		t.Error("region past the end should fail")
	}
	if err := CheckRegion([]int{2, 3}, []int{0}, []int{1}); err == nil {
		t.Error("rank mismatch should fail")
	}
	if err := CheckRegion(nil, nil, nil); err != nil {
		t.Error(err)
	}
}

func TestExtractRegion(t *testing.T) {
	a := make([]int32, 24)
	for i := range a {
		a[i] = int32(i)
	}
	have, err := ExtractRegion(a, []int{2, 3, 4}, []int{1, 1, 1}, []int{1, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []int32{17, 18, 21, 22}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("%v != %v", have, want)
	}

	scalar, err := ExtractRegion([]float64{3.5}, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(scalar, []float64{3.5}) {
		t.Errorf("scalar %v", scalar)
	}

	if _, err := ExtractRegion(a, []int{5, 5}, []int{0, 0}, []int{1, 1}); err == nil {
		t.Error("shape mismatch should fail")
	}
}

func TestCopyRegionRoundTrip(t *testing.T) {
	shape := []int{3, 4}
	array := make([]float32, 12)
	copyRegion(array, shape, []int{1, 1}, []int{2, 2}, []float32{1, 2, 3, 4}, true)
	want := []float32{
		0, 0, 0, 0,
		0, 1, 2, 0,
		0, 3, 4, 0,
	}
	if !reflect.DeepEqual(array, want) {
		t.Errorf("%v != %v", array, want)
	}
	out := make([]float32, 4)
	copyRegion(array, shape, []int{1, 1}, []int{2, 2}, out, false)
	if !reflect.DeepEqual(out, []float32{1, 2, 3, 4}) {
		t.Errorf("read back %v", out)
	}
}
