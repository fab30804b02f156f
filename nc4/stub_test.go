//go:build !netcdf

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

import (
	"context"
	"errors"
	"testing"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/internal/fixture"
)

func TestStub(t *testing.T) {
	s, err := adios2nc.LookupStore(Name)
	if err != nil {
		t.Fatal(err)
	}
	if s.Access() != adios2nc.Serialized {
		t.Errorf("access %v", s.Access())
	}
	if _, err := s.Create(context.Background(), "x.nc"); !errors.Is(err, adios2nc.ErrNotCompiled) {
		t.Errorf("create: %v", err)
	}
	if _, err := s.Attach(context.Background(), "x.nc"); !errors.Is(err, adios2nc.ErrNotCompiled) {
		t.Errorf("attach: %v", err)
	}
}

// A conversion to the default format fails before touching the output.
func TestConvertNotCompiled(t *testing.T) {
	src := fixture.WRF()
	_, err := adios2nc.Convert(context.Background(), "wrfout.bp", "wrfout.nc", false,
		adios2nc.WithOpener(src.Opener()))
	var se *adios2nc.SchemaError
	if !errors.As(err, &se) || !errors.Is(err, adios2nc.ErrNotCompiled) {
		t.Errorf("want SchemaError wrapping ErrNotCompiled, got %v", err)
	}
	if !src.Closed {
		t.Error("source left open")
	}
}
