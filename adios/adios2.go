//go:build adios2

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

package adios

/*
#cgo LDFLAGS: -ladios2_c
#include <stdlib.h>
#include <adios2_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// Error is an error status returned by the ADIOS2 library.
type Error struct {
	Code int
	Op   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("adios2nc/adios: %s: error %d", e.Op, e.Code)
}

func check(op string, status C.adios2_error) error {
	if status == C.adios2_error_none {
		return nil
	}
	return &Error{Code: int(status), Op: op}
}

// Reader is an ADIOS2 BP dataset opened for random access to its
// steps. It is safe for concurrent use.
type Reader struct {
	path string

	mu     sync.Mutex
	adios  *C.adios2_adios
	io     *C.adios2_io
	engine *C.adios2_engine
	vars   map[string]*C.adios2_variable
	types  map[string]adios2nc.ElementType
}

// Open opens the BP dataset at path.
func Open(_ context.Context, path string) (adios2nc.Source, error) {
	r := &Reader{
		path:  path,
		vars:  make(map[string]*C.adios2_variable),
		types: make(map[string]adios2nc.ElementType),
	}
	r.adios = C.adios2_init_serial()
	if r.adios == nil {
		return nil, fmt.Errorf("adios2nc/adios: initializing ADIOS2")
	}
	cname := C.CString(ioName)
	defer C.free(unsafe.Pointer(cname))
	r.io = C.adios2_declare_io(r.adios, cname)
	if r.io == nil {
		C.adios2_finalize(r.adios)
		return nil, fmt.Errorf("adios2nc/adios: declaring IO")
	}
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	r.engine = C.adios2_open(r.io, cpath, C.adios2_mode_readRandomAccess)
	if r.engine == nil {
		C.adios2_finalize(r.adios)
		return nil, fmt.Errorf("adios2nc/adios: opening %s", path)
	}
	return r, nil
}

// Steps returns the number of steps in the dataset.
func (r *Reader) Steps() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n C.size_t
	if err := check("adios2_steps", C.adios2_steps(&n, r.engine)); err != nil {
		return 0, err
	}
	return int(n), nil
}

func elementType(t C.adios2_type) adios2nc.ElementType {
	switch t {
	case C.adios2_type_int8_t:
		return adios2nc.Int8
	case C.adios2_type_uint8_t:
		return adios2nc.Uint8
	case C.adios2_type_int16_t:
		return adios2nc.Int16
	case C.adios2_type_uint16_t:
		return adios2nc.Uint16
	case C.adios2_type_int32_t:
		return adios2nc.Int32
	case C.adios2_type_uint32_t:
		return adios2nc.Uint32
	case C.adios2_type_int64_t:
		return adios2nc.Int64
	case C.adios2_type_uint64_t:
		return adios2nc.Uint64
	case C.adios2_type_float:
		return adios2nc.Float32
	case C.adios2_type_double:
		return adios2nc.Float64
	case C.adios2_type_string:
		return adios2nc.String
	}
	return adios2nc.Invalid
}

// variableName returns the name of v.
func variableName(v *C.adios2_variable) (string, error) {
	var n C.size_t
	if err := check("adios2_variable_name", C.adios2_variable_name(nil, &n, v)); err != nil {
		return "", err
	}
	buf := make([]byte, int(n)+1)
	if err := check("adios2_variable_name", C.adios2_variable_name((*C.char)(unsafe.Pointer(&buf[0])), &n, v)); err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Variables lists the variables with the steps in which each is
// available. String variables are listed as character arrays.
func (r *Reader) Variables() ([]adios2nc.VariableInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list **C.adios2_variable
	var n C.size_t
	if err := check("adios2_inquire_all_variables", C.adios2_inquire_all_variables(&list, &n, r.io)); err != nil {
		return nil, err
	}
	if list == nil || n == 0 {
		return nil, nil
	}
	defer C.free(unsafe.Pointer(list))

	var out []adios2nc.VariableInfo
	for _, v := range unsafe.Slice(list, int(n)) {
		name, err := variableName(v)
		if err != nil {
			return nil, err
		}
		var typ C.adios2_type
		if err := check("adios2_variable_type "+name, C.adios2_variable_type(&typ, v)); err != nil {
			return nil, err
		}
		var first, count C.size_t
		if err := check("adios2_variable_steps_start "+name, C.adios2_variable_steps_start(&first, v)); err != nil {
			return nil, err
		}
		if err := check("adios2_variable_steps "+name, C.adios2_variable_steps(&count, v)); err != nil {
			return nil, err
		}
		t := elementType(typ)
		r.vars[name] = v
		r.types[name] = t
		if t == adios2nc.String {
			t = adios2nc.Char
		}
		info := adios2nc.VariableInfo{Name: name, Type: t}
		for s := int(first); s < int(first+count); s++ {
			info.Steps = append(info.Steps, s)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Reader) variable(name string) (*C.adios2_variable, error) {
	if v, ok := r.vars[name]; ok {
		return v, nil
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	v := C.adios2_inquire_variable(r.io, cname)
	if v == nil {
		return nil, fmt.Errorf("adios2nc/adios: no variable %s in %s", name, r.path)
	}
	var typ C.adios2_type
	if err := check("adios2_variable_type "+name, C.adios2_variable_type(&typ, v)); err != nil {
		return nil, err
	}
	r.vars[name] = v
	r.types[name] = elementType(typ)
	return v, nil
}

// Shape returns the global shape of the named variable at step. The
// shape of a string variable is the length of its value.
func (r *Reader) Shape(name string, step int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.variable(name)
	if err != nil {
		return nil, err
	}
	if err := check("adios2_set_step_selection "+name, C.adios2_set_step_selection(v, C.size_t(step), 1)); err != nil {
		return nil, err
	}
	if r.types[name] == adios2nc.String {
		s, err := r.getString(name, v)
		if err != nil {
			return nil, err
		}
		return []int{len(s)}, nil
	}
	var ndims C.size_t
	if err := check("adios2_variable_ndims "+name, C.adios2_variable_ndims(&ndims, v)); err != nil {
		return nil, err
	}
	if ndims == 0 {
		return []int{}, nil
	}
	shape := make([]C.size_t, int(ndims))
	if err := check("adios2_variable_shape "+name, C.adios2_variable_shape(&shape[0], v)); err != nil {
		return nil, err
	}
	out := make([]int, len(shape))
	for i, n := range shape {
		out[i] = int(n)
	}
	return out, nil
}

// getString reads the value of a string variable at the selected step.
func (r *Reader) getString(name string, v *C.adios2_variable) (string, error) {
	buf := (*C.char)(C.malloc(C.adios2_string_array_element_max_size + 1))
	defer C.free(unsafe.Pointer(buf))
	*buf = 0
	if err := check("adios2_get "+name, C.adios2_get(r.engine, v, unsafe.Pointer(buf), C.adios2_mode_sync)); err != nil {
		return "", err
	}
	return C.GoString(buf), nil
}

// Read reads a region of the named variable at step.
func (r *Reader) Read(name string, step int, start, count []int) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.variable(name)
	if err != nil {
		return nil, err
	}
	if err := check("adios2_set_step_selection "+name, C.adios2_set_step_selection(v, C.size_t(step), 1)); err != nil {
		return nil, err
	}
	t := r.types[name]
	if t == adios2nc.String {
		if len(start) != 1 || len(count) != 1 {
			return nil, fmt.Errorf("adios2nc/adios: string variable %s read with rank %d", name, len(start))
		}
		s, err := r.getString(name, v)
		if err != nil {
			return nil, err
		}
		if start[0] < len(s) {
			s = s[start[0]:]
		} else {
			s = ""
		}
		return pad(s, count[0]), nil
	}
	if t == adios2nc.Invalid {
		return nil, fmt.Errorf("adios2nc/adios: variable %s: %w", name, adios2nc.ErrUnsupportedType)
	}
	n := 1
	for _, c := range count {
		n *= c
	}
	data := adios2nc.MakeValues(t, n)
	if n == 0 {
		return data, nil
	}
	if len(start) > 0 {
		cstart, ccount := make([]C.size_t, len(start)), make([]C.size_t, len(count))
		for i := range start {
			cstart[i], ccount[i] = C.size_t(start[i]), C.size_t(count[i])
		}
		if err := check("adios2_set_selection "+name, C.adios2_set_selection(v, C.size_t(len(start)), &cstart[0], &ccount[0])); err != nil {
			return nil, err
		}
	}
	if err := check("adios2_get "+name, C.adios2_get(r.engine, v, pointer(data), C.adios2_mode_sync)); err != nil {
		return nil, err
	}
	return data, nil
}

// Attributes returns every attribute of the dataset. Variable attributes
// are named "variable/attribute".
func (r *Reader) Attributes() ([]adios2nc.Attribute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list **C.adios2_attribute
	var n C.size_t
	if err := check("adios2_inquire_all_attributes", C.adios2_inquire_all_attributes(&list, &n, r.io)); err != nil {
		return nil, err
	}
	if list == nil || n == 0 {
		return nil, nil
	}
	defer C.free(unsafe.Pointer(list))
	out := make([]adios2nc.Attribute, 0, int(n))
	for _, a := range unsafe.Slice(list, int(n)) {
		attr, err := readAttribute(a)
		if err != nil {
			return nil, err
		}
		out = append(out, attr)
	}
	return out, nil
}

func readAttribute(a *C.adios2_attribute) (adios2nc.Attribute, error) {
	var n C.size_t
	if err := check("adios2_attribute_name", C.adios2_attribute_name(nil, &n, a)); err != nil {
		return adios2nc.Attribute{}, err
	}
	nameBuf := make([]byte, int(n)+1)
	if err := check("adios2_attribute_name", C.adios2_attribute_name((*C.char)(unsafe.Pointer(&nameBuf[0])), &n, a)); err != nil {
		return adios2nc.Attribute{}, err
	}
	name := string(nameBuf[:n])

	var typ C.adios2_type
	var isValue C.adios2_bool
	var size C.size_t
	if err := check("adios2_attribute_type "+name, C.adios2_attribute_type(&typ, a)); err != nil {
		return adios2nc.Attribute{}, err
	}
	if err := check("adios2_attribute_is_value "+name, C.adios2_attribute_is_value(&isValue, a)); err != nil {
		return adios2nc.Attribute{}, err
	}
	if err := check("adios2_attribute_size "+name, C.adios2_attribute_size(&size, a)); err != nil {
		return adios2nc.Attribute{}, err
	}

	t := elementType(typ)
	switch t {
	case adios2nc.Invalid:
		return adios2nc.Attribute{}, fmt.Errorf("adios2nc/adios: attribute %s: %w", name, adios2nc.ErrUnsupportedType)
	case adios2nc.String:
		count := int(size)
		if isValue == C.adios2_true {
			count = 1
		}
		bufs := make([]*C.char, count)
		for i := range bufs {
			bufs[i] = (*C.char)(C.calloc(C.adios2_string_array_element_max_size+1, 1))
			defer C.free(unsafe.Pointer(bufs[i]))
		}
		var got C.size_t
		var data unsafe.Pointer
		if isValue == C.adios2_true {
			data = unsafe.Pointer(bufs[0])
		} else if count > 0 {
			data = unsafe.Pointer(&bufs[0])
		}
		if err := check("adios2_attribute_data "+name, C.adios2_attribute_data(data, &got, a)); err != nil {
			return adios2nc.Attribute{}, err
		}
		if isValue == C.adios2_true {
			return adios2nc.Attribute{Name: name, Value: C.GoString(bufs[0])}, nil
		}
		values := make([]string, int(got))
		for i := range values {
			values[i] = C.GoString(bufs[i])
		}
		return adios2nc.Attribute{Name: name, Value: values}, nil
	}
	values := adios2nc.MakeValues(t, int(size))
	if size > 0 {
		var got C.size_t
		if err := check("adios2_attribute_data "+name, C.adios2_attribute_data(pointer(values), &got, a)); err != nil {
			return adios2nc.Attribute{}, err
		}
	}
	return adios2nc.Attribute{Name: name, Value: values}, nil
}

// Close closes the dataset and releases the library.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return adios2nc.ErrClosed
	}
	err := check("adios2_close", C.adios2_close(r.engine))
	r.engine = nil
	if ferr := check("adios2_finalize", C.adios2_finalize(r.adios)); err == nil {
		err = ferr
	}
	return err
}

// pointer returns the address of the first element of a non-empty
// numeric slice.
func pointer(values interface{}) unsafe.Pointer {
	switch v := values.(type) {
	case []int8:
		return unsafe.Pointer(&v[0])
	case []uint8:
		return unsafe.Pointer(&v[0])
	case []int16:
		return unsafe.Pointer(&v[0])
	case []uint16:
		return unsafe.Pointer(&v[0])
	case []int32:
		return unsafe.Pointer(&v[0])
	case []uint32:
		return unsafe.Pointer(&v[0])
	case []int64:
		return unsafe.Pointer(&v[0])
	case []uint64:
		return unsafe.Pointer(&v[0])
	case []float32:
		return unsafe.Pointer(&v[0])
	case []float64:
		return unsafe.Pointer(&v[0])
	}
	panic(fmt.Errorf("adios2nc/adios: no pointer to %T", values))
}
