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

// Package classic writes NetCDF classic (CDF-1 and CDF-2) files
// without cgo. Importing it registers the store under the name
// "classic".
//
// The classic format has no compression, chunking or unsigned and
// 64-bit integer types. Variables of those types are rejected and
// compression settings are ignored.
package classic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/ctessum/cdf"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// Name is the name under which the store is registered.
const Name = "classic"

func init() {
	adios2nc.RegisterStore(Name, Store{})
}

// Store creates NetCDF classic files. Once the creating worker has
// defined a file, other workers can attach to it and write disjoint
// regions concurrently.
type Store struct{}

// Access returns SharedRegions.
func (Store) Access() adios2nc.Access { return adios2nc.SharedRegions }

// Create starts the definition of a new file at path. The file is
// written when the definition ends.
func (Store) Create(_ context.Context, path string) (adios2nc.Destination, error) {
	return &File{path: path, creator: true, dimIndex: make(map[string]int)}, nil
}

// Attach opens a file at path that has been defined by another worker.
func (Store) Attach(_ context.Context, path string) (adios2nc.Destination, error) {
	ff, err := os.OpenFile(path, os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, fmt.Errorf("adios2nc/classic: opening %s: %w", path, err)
	}
	f, err := cdf.Open(ff)
	if err != nil {
		ff.Close()
		return nil, fmt.Errorf("adios2nc/classic: reading header of %s: %w", path, err)
	}
	return &File{path: path, ff: ff, f: f}, nil
}

// File is an open NetCDF classic file.
type File struct {
	path    string
	creator bool

	// Definition state of a file being created.
	dims     []string
	lengths  []int
	dimIndex map[string]int
	steps    int
	h        *cdf.Header

	ff     *os.File
	f      *cdf.File
	closed bool
}

// catch turns a panic raised by the cdf header into an error.
func catch(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	f()
	return nil
}

func (c *File) define() error {
	switch {
	case c.closed:
		return adios2nc.ErrClosed
	case !c.creator || c.f != nil:
		return adios2nc.ErrSchemaFrozen
	}
	return nil
}

// header returns the header under definition, creating it from the
// dimensions declared so far.
func (c *File) header() (*cdf.Header, error) {
	if c.h != nil {
		return c.h, nil
	}
	err := catch(func() { c.h = cdf.NewHeader(c.dims, c.lengths) })
	return c.h, err
}

// CreateDimension declares a dimension. Dimensions must be declared
// before any variable or attribute.
func (c *File) CreateDimension(d *adios2nc.DimensionSpec) error {
	if err := c.define(); err != nil {
		return err
	}
	if c.h != nil {
		return fmt.Errorf("dimension %s declared after the first variable", d.Name)
	}
	if _, dup := c.dimIndex[d.Name]; dup {
		return fmt.Errorf("dimension %s already exists", d.Name)
	}
	n := d.Len
	if d.Unbounded {
		// A length of 0 marks the record dimension.
		n = 0
		c.steps = d.Len
	} else if n <= 0 {
		return fmt.Errorf("dimension %s has length %d", d.Name, n)
	}
	c.dimIndex[d.Name] = len(c.dims)
	c.dims = append(c.dims, d.Name)
	c.lengths = append(c.lengths, n)
	return nil
}

// zero returns an empty value of the cdf type that stores t.
func zero(t adios2nc.ElementType) (interface{}, error) {
	switch t {
	case adios2nc.Int8:
		return []uint8{}, nil
	case adios2nc.Char:
		return "", nil
	case adios2nc.Int16:
		return []int16{}, nil
	case adios2nc.Int32:
		return []int32{}, nil
	case adios2nc.Float32:
		return []float32{}, nil
	case adios2nc.Float64:
		return []float64{}, nil
	}
	return nil, fmt.Errorf("%w %v in the classic format", adios2nc.ErrUnsupportedType, t)
}

// values converts data to a type the cdf package can store.
func values(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case []int8:
		b := make([]uint8, len(v))
		for i, x := range v {
			b[i] = uint8(x)
		}
		return b, nil
	case string, []uint8, []int16, []int32, []float32, []float64:
		return data, nil
	}
	return nil, fmt.Errorf("%w %v in the classic format", adios2nc.ErrUnsupportedType, adios2nc.TypeOf(data))
}

// CreateVariable declares a variable.
func (c *File) CreateVariable(v *adios2nc.DestinationVariable) error {
	if err := c.define(); err != nil {
		return err
	}
	z, err := zero(v.Type)
	if err != nil {
		return err
	}
	h, err := c.header()
	if err != nil {
		return err
	}
	return catch(func() { h.AddVariable(v.Name, v.DimNames(), z) })
}

// SetAttribute sets a global or variable attribute. Int8 attributes are
// stored as BYTE and Char attributes as CHAR.
func (c *File) SetAttribute(variable string, a adios2nc.Attribute) error {
	if err := c.define(); err != nil {
		return err
	}
	val, err := values(a.Value)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", a.Name, err)
	}
	h, err := c.header()
	if err != nil {
		return err
	}
	return catch(func() { h.AddAttribute(variable, a.Name, val) })
}

// EndDef writes the header. If the file has a record dimension, the
// last record is filled so that the file covers every step before any
// worker writes to it.
func (c *File) EndDef() error {
	if err := c.define(); err != nil {
		return err
	}
	h, err := c.header()
	if err != nil {
		return err
	}
	if err := catch(h.Define); err != nil {
		return err
	}
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("adios2nc/classic: invalid header: %v", errs[0])
	}
	c.ff, err = os.Create(c.path)
	if err != nil {
		return fmt.Errorf("adios2nc/classic: creating %s: %w", c.path, err)
	}
	c.f, err = cdf.Create(c.ff, h)
	if err != nil {
		return fmt.Errorf("adios2nc/classic: writing header of %s: %w", c.path, err)
	}
	if c.steps > 0 {
		if err := c.f.FillRecord(c.steps - 1); err != nil {
			return fmt.Errorf("adios2nc/classic: allocating %d records: %w", c.steps, err)
		}
	}
	return nil
}

// WriteRegion writes a region of a variable. A region that is not
// contiguous in the file is written as a series of contiguous runs.
func (c *File) WriteRegion(variable string, start, count []int, data interface{}) error {
	if c.closed {
		return adios2nc.ErrClosed
	}
	if c.f == nil {
		return fmt.Errorf("writing %s before the end of the definition phase", variable)
	}
	h := c.f.Header
	lengths := h.Lengths(variable)
	if lengths == nil {
		return fmt.Errorf("variable %s does not exist", variable)
	}
	shape := append([]int(nil), lengths...)
	if h.IsRecordVariable(variable) && len(start) > 0 {
		shape[0] = start[0] + count[0]
	}
	if err := adios2nc.CheckRegion(shape, start, count); err != nil {
		return err
	}
	n := 1
	for _, x := range count {
		n *= x
	}
	if adios2nc.Len(data) != n {
		return fmt.Errorf("got %d elements for a region of %d", adios2nc.Len(data), n)
	}
	if n == 0 {
		return nil
	}
	val, err := values(data)
	if err != nil {
		return err
	}
	starts, run := runs(shape, start, count)
	m := n / len(starts)
	rv := reflect.ValueOf(val)
	for k, begin := range starts {
		if err := c.write(variable, begin, run, rv.Slice(k*m, (k+1)*m).Interface(), m); err != nil {
			return err
		}
	}
	return nil
}

// write writes n values to the contiguous region of variable beginning
// at start and extending count elements along each axis.
func (c *File) write(variable string, start, count []int, val interface{}, n int) error {
	end := make([]int, len(start))
	for i := range start {
		end[i] = start[i] + count[i] - 1
	}
	w := c.f.Writer(variable, start, end)
	written, err := w.Write(val)
	// The writer reports io.EOF when it reaches the end of the region.
	if errors.Is(err, io.EOF) && written == n {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", variable, err)
	}
	if written != n {
		return fmt.Errorf("writing %s: wrote %d of %d elements", variable, written, n)
	}
	return nil
}

// runs splits the region of shape beginning at start and extending count
// elements along each axis into runs that are contiguous in row-major
// order. It returns the start of each run, in order, and the count
// shared by all of them.
func runs(shape, start, count []int) ([][]int, []int) {
	if adios2nc.Contiguous(shape, start, count) {
		return [][]int{start}, count
	}
	// Axes after the last partially covered one are covered fully, so a
	// run spans the partial axis and everything after it.
	partial := len(shape) - 1
	for start[partial] == 0 && count[partial] == shape[partial] {
		partial--
	}
	run := append([]int(nil), count...)
	for i := 0; i < partial; i++ {
		run[i] = 1
	}
	var starts [][]int
	idx := make([]int, partial)
	for {
		begin := append([]int(nil), start...)
		for i, x := range idx {
			begin[i] += x
		}
		starts = append(starts, begin)
		i := partial - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < count[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return starts, run
		}
	}
}

// Close closes the file. The creating worker also records the number
// of records in the header.
func (c *File) Close() error {
	if c.closed {
		return adios2nc.ErrClosed
	}
	c.closed = true
	if c.ff == nil {
		return fmt.Errorf("adios2nc/classic: closing %s before the end of the definition phase", c.path)
	}
	if c.creator {
		if err := cdf.UpdateNumRecs(c.ff); err != nil {
			c.ff.Close()
			return fmt.Errorf("adios2nc/classic: finalizing %s: %w", c.path, err)
		}
	}
	return c.ff.Close()
}

// Discard closes the file without finalizing it.
func (c *File) Discard() error {
	c.closed = true
	if c.ff == nil {
		return nil
	}
	err := c.ff.Close()
	c.ff = nil
	return err
}
