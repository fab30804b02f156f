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

// Package nc4 writes NetCDF-4 files through the netCDF C library.
// Importing it registers the store under the name "netcdf4".
//
// The library is only linked when building with the "netcdf" build tag:
//
//	go build -tags netcdf ./...
//
// Without the tag the store is still registered, but creating or
// attaching to a file fails with adios2nc.ErrNotCompiled.
package nc4

import (
	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// Name is the name under which the store is registered.
const Name = "netcdf4"

func init() {
	adios2nc.RegisterStore(Name, Store{})
}

// Store creates NetCDF-4 files. The library does not support concurrent
// writers without MPI, so the workers of a distributed run take turns.
type Store struct{}

// Access returns Serialized.
func (Store) Access() adios2nc.Access { return adios2nc.Serialized }
