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

// CheckRegion checks that the region beginning at start and extending
// count elements along each axis lies within shape.
func CheckRegion(shape, start, count []int) error {
	if len(start) != len(shape) || len(count) != len(shape) {
		return fmt.Errorf("region rank (%d, %d) does not match variable rank %d", len(start), len(count), len(shape))
	}
	for i := range shape {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > shape[i] {
			return fmt.Errorf("region [%d, %d) outside of axis %d with extent %d", start[i], start[i]+count[i], i, shape[i])
		}
	}
	return nil
}

// Contiguous reports whether the region of shape beginning at start and
// extending count elements along each axis is one contiguous run in
// row-major order.
func Contiguous(shape, start, count []int) bool {
	// Every axis after the last partially covered one is covered fully,
	// so every axis before it must have a count of 1.
	partial := -1
	for i := len(shape) - 1; i >= 0; i-- {
		if start[i] != 0 || count[i] != shape[i] {
			partial = i
			break
		}
	}
	for i := 0; i < partial; i++ {
		if count[i] != 1 {
			return false
		}
	}
	return true
}

// copyRegion copies between a row-major array of the given shape and a
// packed region of it. If toArray is true, region is copied into array;
// otherwise array is copied into region.
func copyRegion(array interface{}, shape, start, count []int, region interface{}, toArray bool) {
	av, rv := reflect.ValueOf(array), reflect.ValueOf(region)
	if len(shape) == 0 {
		if toArray {
			reflect.Copy(av, rv)
		} else {
			reflect.Copy(rv, av)
		}
		return
	}
	if product(count) == 0 {
		return
	}
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	last := len(shape) - 1
	run := count[last]
	idx := make([]int, last)
	for k := 0; ; k += run {
		off := start[last]
		for i := 0; i < last; i++ {
			off += (start[i] + idx[i]) * strides[i]
		}
		a := av.Slice(off, off+run)
		r := rv.Slice(k, k+run)
		if toArray {
			reflect.Copy(a, r)
		} else {
			reflect.Copy(r, a)
		}
		// Advance the outer index like an odometer.
		i := last - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < count[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// ExtractRegion returns a copy of the region of a row-major array of the
// given shape beginning at start and extending count elements along
// each axis.
func ExtractRegion(array interface{}, shape, start, count []int) (interface{}, error) {
	t := TypeOf(array)
	if t == Invalid || t == Char {
		return nil, fmt.Errorf("adios2nc: cannot extract a region from %T", array)
	}
	if n := Len(array); n != product(shape) {
		return nil, fmt.Errorf("adios2nc: array of %d elements does not have shape %v", n, shape)
	}
	if err := CheckRegion(shape, start, count); err != nil {
		return nil, fmt.Errorf("adios2nc: %w", err)
	}
	out := MakeValues(t, product(count))
	copyRegion(array, shape, start, count, out, false)
	return out, nil
}
