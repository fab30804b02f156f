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

// Package cloud moves conversion inputs and outputs between the local
// filesystem and blob storage.
package cloud

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// IsBlob reports whether path is a blob storage address rather than a
// local path.
func IsBlob(path string) bool {
	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "file", "gs", "s3":
		return true
	}
	return false
}

// Split splits a blob address of the form 'provider://bucket/key' into
// the bucket address 'provider://bucket' and the key.
func Split(path string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("adios2nc/cloud: %v", err)
	}
	if !IsBlob(path) {
		return "", "", fmt.Errorf("adios2nc/cloud: %s is not a blob address", path)
	}
	return u.Scheme + "://" + u.Host, strings.TrimLeft(u.Path, "/"), nil
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// The accepted storage providers are "file" for the local filesystem,
// "gs" for Google Cloud Storage, and "s3" for AWS S3. For "file", name
// is the directory holding the bucket.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("adios2nc/cloud: %v", err)
	}
	switch u.Scheme {
	case "file":
		dir := u.Host + u.Path
		if u.Host == "" {
			dir = u.Path
		}
		return fileblob.OpenBucket(dir, nil)
	case "gs":
		return gsBucket(ctx, u.Hostname())
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("adios2nc/cloud: invalid provider %q", u.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}

// DownloadDir copies every blob in bucket whose key begins with prefix
// into dir, keeping the part of the key after prefix as the relative
// path. A BP dataset is a directory, so this is how one is fetched. It
// returns the number of blobs copied.
func DownloadDir(ctx context.Context, bucket *blob.Bucket, prefix, dir string) (int, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	iter := bucket.List(&blob.ListOptions{Prefix: prefix})
	n := 0
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, fmt.Errorf("adios2nc/cloud: listing %s: %v", prefix, err)
		}
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		if err := download(ctx, bucket, obj.Key, filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func download(ctx context.Context, bucket *blob.Bucket, key, path string) error {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("adios2nc/cloud: reading blob %s: %v", key, err)
	}
	defer r.Close()
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("adios2nc/cloud: %v", err)
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("adios2nc/cloud: %v", err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("adios2nc/cloud: copying blob %s: %v", key, err)
	}
	return w.Close()
}

// Upload copies the local file at path to the blob key in bucket.
func Upload(ctx context.Context, bucket *blob.Bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("adios2nc/cloud: %v", err)
	}
	defer f.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("adios2nc/cloud: creating writer for blob %s: %v", key, err)
	}
	if _, err = io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("adios2nc/cloud: copying blob %s: %v", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("adios2nc/cloud: writing blob %s: %v", key, err)
	}
	return nil
}
