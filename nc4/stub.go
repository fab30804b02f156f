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
	"fmt"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// Create fails because the netCDF library is not linked.
func (Store) Create(_ context.Context, path string) (adios2nc.Destination, error) {
	return nil, fmt.Errorf("adios2nc/nc4: creating %s: %w (build with -tags netcdf)", path, adios2nc.ErrNotCompiled)
}

// Attach fails because the netCDF library is not linked.
func (Store) Attach(_ context.Context, path string) (adios2nc.Destination, error) {
	return nil, fmt.Errorf("adios2nc/nc4: opening %s: %w (build with -tags netcdf)", path, adios2nc.ErrNotCompiled)
}
