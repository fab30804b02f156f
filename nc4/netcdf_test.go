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

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/internal/fixture"
)

func TestConvert(t *testing.T) {
	out := filepath.Join(t.TempDir(), "wrfout.nc")
	log, _ := test.NewNullLogger()
	_, err := adios2nc.Convert(context.Background(), "wrfout.bp", out, false,
		adios2nc.WithOpener(fixture.WRF().Opener()),
		adios2nc.WithDimNaming(adios2nc.NameBySource),
		adios2nc.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("\x89HDF\r\n\x1a\n")) {
		t.Errorf("%s is not an HDF5 file", out)
	}
}
