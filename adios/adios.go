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

// Package adios reads ADIOS2 BP datasets through the ADIOS2 C bindings.
// Importing it registers the source under the name "adios2".
//
// The bindings are only linked when building with the "adios2" build
// tag:
//
//	go build -tags adios2 ./...
//
// Without the tag the source is still registered, but opening a
// dataset fails with adios2nc.ErrNotCompiled.
package adios

import (
	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// Name is the name under which the source is registered.
const Name = "adios2"

// ioName is the name of the ADIOS2 IO object used for reading.
const ioName = "adios2nc"

func init() {
	adios2nc.RegisterSource(Name, Open)
}

// pad returns s cut or zero-padded to n bytes.
func pad(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}
