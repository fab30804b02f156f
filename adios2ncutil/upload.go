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
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/cloud"
)

type uploader struct {
	// local is a temporary file standing in for the blob storage
	// address remote.
	local, remote string
	dir           string
	err           error
}

// maybeUpload checks whether the given output file path refers to
// a blob storage location. If it does, then a temporary file location
// is returned. The file will then be uploaded to blob storage when
// uploadOutput method is run.
func (u *uploader) maybeUpload(output string) string {
	if !cloud.IsBlob(output) {
		return output
	}
	_, key, err := cloud.Split(output)
	if err != nil {
		u.err = err
		return ""
	}
	if u.dir, u.err = os.MkdirTemp("", "adios2nc"); u.err != nil {
		return ""
	}
	u.local = filepath.Join(u.dir, path.Base(key))
	u.remote = output
	return u.local
}

// uploadOutput uploads the temporary output file, if there is one.
func (u *uploader) uploadOutput(ctx context.Context, log logrus.FieldLogger) error {
	if u.err != nil {
		return u.err
	}
	if u.remote == "" {
		return nil
	}
	bucketName, key, err := cloud.Split(u.remote)
	if err != nil {
		return err
	}
	bucket, err := cloud.OpenBucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("adios2nc: opening bucket to upload %s: %v", u.remote, err)
	}
	if err := cloud.Upload(ctx, bucket, key, u.local); err != nil {
		return err
	}
	log.WithField("output", u.remote).Info("uploaded output")
	return nil
}

// cleanup removes the temporary output.
func (u *uploader) cleanup() {
	if u.dir != "" {
		os.RemoveAll(u.dir)
	}
}
