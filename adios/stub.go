//go:build !adios2

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

import (
	"context"
	"fmt"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
)

// Open fails because the ADIOS2 library is not linked.
func Open(_ context.Context, path string) (adios2nc.Source, error) {
	return nil, fmt.Errorf("adios2nc/adios: opening %s: %w (build with -tags adios2)", path, adios2nc.ErrNotCompiled)
}
