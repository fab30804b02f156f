//go:build netcdf

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

package nc4

/*
#cgo LDFLAGS: -lnetcdf
#include <stdlib.h>
#include <netcdf.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// The netCDF library is not thread-safe.
var libMu sync.Mutex

// Error is an error status returned by the netCDF library.
type Error struct {
	Code int
	Op   string
}

func (e *Error) Error() string {
	libMu.Lock()
	msg := C.GoString(C.nc_strerror(C.int(e.Code)))
	libMu.Unlock()
	return fmt.Sprintf("adios2nc/nc4: %s: %s (%d)", e.Op, msg, e.Code)
}

func check(op string, status C.int) error {
	if status == C.NC_NOERR {
		return nil
	}
	return &Error{Code: int(status), Op: op}
}

// Create creates a NetCDF-4 file at path, replacing any existing file.
// Fill values are disabled; every element is written by some worker.
func (Store) Create(_ context.Context, path string) (adios2nc.Destination, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	libMu.Lock()
	defer libMu.Unlock()
	var id C.int
	if err := check("nc_create "+path, C.nc_create(cpath, C.NC_NETCDF4|C.NC_CLOBBER, &id)); err != nil {
		return nil, err
	}
	var old C.int
	if err := check("nc_set_fill", C.nc_set_fill(id, C.NC_NOFILL, &old)); err != nil {
		C.nc_close(id)
		return nil, err
	}
	return newFile(path, id, true), nil
}

// Attach opens a defined NetCDF-4 file for writing.
func (Store) Attach(_ context.Context, path string) (adios2nc.Destination, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	libMu.Lock()
	defer libMu.Unlock()
	var id C.int
	if err := check("nc_open "+path, C.nc_open(cpath, C.NC_WRITE, &id)); err != nil {
		return nil, err
	}
	f := newFile(path, id, false)
	f.defined = true
	return f, nil
}

// File is an open NetCDF-4 file.
type File struct {
	path    string
	id      C.int
	creator bool
	defined bool
	closed  bool

	dims map[string]C.int
	vars map[string]C.int
}

func newFile(path string, id C.int, creator bool) *File {
	return &File{
		path:    path,
		id:      id,
		creator: creator,
		dims:    make(map[string]C.int),
		vars:    make(map[string]C.int),
	}
}

func (f *File) define() error {
	switch {
	case f.closed:
		return adios2nc.ErrClosed
	case !f.creator || f.defined:
		return adios2nc.ErrSchemaFrozen
	}
	return nil
}

// ncType returns the netCDF type that stores t.
func ncType(t adios2nc.ElementType) (C.nc_type, error) {
	switch t {
	case adios2nc.Int8:
		return C.NC_BYTE, nil
	case adios2nc.Uint8:
		return C.NC_UBYTE, nil
	case adios2nc.Char:
		return C.NC_CHAR, nil
	case adios2nc.Int16:
		return C.NC_SHORT, nil
	case adios2nc.Uint16:
		return C.NC_USHORT, nil
	case adios2nc.Int32:
		return C.NC_INT, nil
	case adios2nc.Uint32:
		return C.NC_UINT, nil
	case adios2nc.Int64:
		return C.NC_INT64, nil
	case adios2nc.Uint64:
		return C.NC_UINT64, nil
	case adios2nc.Float32:
		return C.NC_FLOAT, nil
	case adios2nc.Float64:
		return C.NC_DOUBLE, nil
	case adios2nc.String:
		return C.NC_STRING, nil
	}
	return 0, fmt.Errorf("%w %v", adios2nc.ErrUnsupportedType, t)
}

// pointer returns the address of the first element of a numeric or
// byte slice, or nil if it is empty.
func pointer(values interface{}) unsafe.Pointer {
	switch v := values.(type) {
	case []int8:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []uint8:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []int16:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []uint16:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []int32:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []uint32:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []int64:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []uint64:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []float32:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	case []float64:
		if len(v) > 0 {
			return unsafe.Pointer(&v[0])
		}
	}
	return nil
}

func sizes(x []int) []C.size_t {
	out := make([]C.size_t, len(x))
	for i, n := range x {
		out[i] = C.size_t(n)
	}
	return out
}

func firstSize(x []C.size_t) *C.size_t {
	if len(x) == 0 {
		return nil
	}
	return &x[0]
}

func (f *File) CreateDimension(d *adios2nc.DimensionSpec) error {
	if err := f.define(); err != nil {
		return err
	}
	n := C.size_t(d.Len)
	if d.Unbounded {
		n = C.NC_UNLIMITED
	}
	name := C.CString(d.Name)
	defer C.free(unsafe.Pointer(name))
	libMu.Lock()
	defer libMu.Unlock()
	var id C.int
	if err := check("nc_def_dim "+d.Name, C.nc_def_dim(f.id, name, n, &id)); err != nil {
		return err
	}
	f.dims[d.Name] = id
	return nil
}

// CreateVariable defines a variable with its chunking and deflate
// settings.
func (f *File) CreateVariable(v *adios2nc.DestinationVariable) error {
	if err := f.define(); err != nil {
		return err
	}
	xtype, err := ncType(v.Type)
	if err != nil {
		return err
	}
	dimids := make([]C.int, len(v.Dims))
	for i, d := range v.Dims {
		id, ok := f.dims[d.Name]
		if !ok {
			return fmt.Errorf("dimension %s does not exist", d.Name)
		}
		dimids[i] = id
	}
	var dimp *C.int
	if len(dimids) > 0 {
		dimp = &dimids[0]
	}
	name := C.CString(v.Name)
	defer C.free(unsafe.Pointer(name))

	libMu.Lock()
	defer libMu.Unlock()
	var id C.int
	if err := check("nc_def_var "+v.Name, C.nc_def_var(f.id, name, xtype, C.int(len(dimids)), dimp, &id)); err != nil {
		return err
	}
	f.vars[v.Name] = id
	if len(v.Chunk) > 0 {
		chunks := sizes(v.Chunk)
		if err := check("nc_def_var_chunking "+v.Name, C.nc_def_var_chunking(f.id, id, C.NC_CHUNKED, &chunks[0])); err != nil {
			return err
		}
	}
	if c := v.Compression; c.Level > 0 && len(v.Dims) > 0 {
		shuffle := C.int(0)
		if c.Shuffle {
			shuffle = 1
		}
		if err := check("nc_def_var_deflate "+v.Name, C.nc_def_var_deflate(f.id, id, shuffle, 1, C.int(c.Level))); err != nil {
			return err
		}
	}
	return nil
}

// SetAttribute writes a global or variable attribute.
func (f *File) SetAttribute(variable string, a adios2nc.Attribute) error {
	if err := f.define(); err != nil {
		return err
	}
	varid := C.int(C.NC_GLOBAL)
	if variable != "" {
		id, ok := f.vars[variable]
		if !ok {
			return fmt.Errorf("variable %s does not exist", variable)
		}
		varid = id
	}
	name := C.CString(a.Name)
	defer C.free(unsafe.Pointer(name))
	op := "nc_put_att " + variable + ":" + a.Name

	switch v := a.Value.(type) {
	case string:
		text := C.CString(v)
		defer C.free(unsafe.Pointer(text))
		libMu.Lock()
		defer libMu.Unlock()
		return check(op, C.nc_put_att_text(f.id, varid, name, C.size_t(len(v)), text))
	case []string:
		strs := make([]*C.char, len(v))
		for i, s := range v {
			strs[i] = C.CString(s)
			defer C.free(unsafe.Pointer(strs[i]))
		}
		var p **C.char
		if len(strs) > 0 {
			p = &strs[0]
		}
		libMu.Lock()
		defer libMu.Unlock()
		return check(op, C.nc_put_att_string(f.id, varid, name, C.size_t(len(v)), p))
	}
	xtype, err := ncType(a.Type())
	if err != nil {
		return fmt.Errorf("attribute %s: %w", a.Name, err)
	}
	libMu.Lock()
	defer libMu.Unlock()
	return check(op, C.nc_put_att(f.id, varid, name, xtype, C.size_t(adios2nc.Len(a.Value)), pointer(a.Value)))
}

// EndDef leaves define mode.
func (f *File) EndDef() error {
	if err := f.define(); err != nil {
		return err
	}
	libMu.Lock()
	defer libMu.Unlock()
	if err := check("nc_enddef", C.nc_enddef(f.id)); err != nil {
		return err
	}
	f.defined = true
	return nil
}

// varID returns the id of the named variable, looking it up in the file
// if this handle did not define it.
func (f *File) varID(name string) (C.int, error) {
	if id, ok := f.vars[name]; ok {
		return id, nil
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var id C.int
	if err := check("nc_inq_varid "+name, C.nc_inq_varid(f.id, cname, &id)); err != nil {
		return 0, err
	}
	f.vars[name] = id
	return id, nil
}

// WriteRegion writes data into a hyperslab of a variable.
func (f *File) WriteRegion(variable string, start, count []int, data interface{}) error {
	if f.closed {
		return adios2nc.ErrClosed
	}
	if !f.defined {
		return fmt.Errorf("writing %s before the end of the definition phase", variable)
	}
	n := 1
	for _, c := range count {
		n *= c
	}
	if adios2nc.Len(data) != n {
		return fmt.Errorf("got %d elements for a region of %d", adios2nc.Len(data), n)
	}
	if n == 0 {
		return nil
	}
	p := pointer(data)
	if p == nil {
		return fmt.Errorf("writing %T to %s: %w", data, variable, adios2nc.ErrUnsupportedType)
	}
	cstart, ccount := sizes(start), sizes(count)

	libMu.Lock()
	defer libMu.Unlock()
	id, err := f.varID(variable)
	if err != nil {
		return err
	}
	return check("nc_put_vara "+variable, C.nc_put_vara(f.id, id, firstSize(cstart), firstSize(ccount), p))
}

// Close writes pending data and closes the file.
func (f *File) Close() error {
	if f.closed {
		return adios2nc.ErrClosed
	}
	f.closed = true
	libMu.Lock()
	defer libMu.Unlock()
	return check("nc_close "+f.path, C.nc_close(f.id))
}

// Discard closes the file. A file still in define mode is deleted by
// the library.
func (f *File) Discard() error {
	if f.closed {
		return nil
	}
	f.closed = true
	libMu.Lock()
	defer libMu.Unlock()
	return check("nc_abort "+f.path, C.nc_abort(f.id))
}
