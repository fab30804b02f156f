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

package adios2ncutil

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/cloud"
)

// maybeDownload checks whether input is a blob storage address. If it
// is, the BP dataset directory it names is copied into a temporary
// directory and the local path is returned along with a function that
// removes the copy. Otherwise input is returned unchanged.
func maybeDownload(ctx context.Context, input string, log logrus.FieldLogger) (string, func(), error) {
	if !cloud.IsBlob(input) {
		return input, func() {}, nil
	}
	bucketName, prefix, err := cloud.Split(input)
	if err != nil {
		return "", nil, err
	}
	bucket, err := cloud.OpenBucket(ctx, bucketName)
	if err != nil {
		return "", nil, fmt.Errorf("adios2nc: opening input bucket: %v", err)
	}
	tmp, err := os.MkdirTemp("", "adios2nc")
	if err != nil {
		return "", nil, fmt.Errorf("adios2nc: creating temporary download directory: %v", err)
	}
	clean := func() { os.RemoveAll(tmp) }
	dir := tmp + string(os.PathSeparator) + path.Base(prefix)
	n, err := cloud.DownloadDir(ctx, bucket, prefix, dir)
	if err != nil {
		clean()
		return "", nil, err
	}
	if n == 0 {
		clean()
		return "", nil, fmt.Errorf("adios2nc: no files found under %s", input)
	}
	log.WithFields(logrus.Fields{"input": input, "files": n}).Info("downloaded input")
	return dir, clean, nil
}
