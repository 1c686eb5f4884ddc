/*
Copyright © 2024 the Groundfish authors.
This file is part of Groundfish.

Groundfish is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Groundfish is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Groundfish.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package storage provides access to the object-storage bucket holding a
// snapshot, and the Avro codecs for every file format in it: per-haul
// observation flat files, per-field index files, the main haul-key list,
// and the build-time haul, catch and species shards.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// OpenBucket opens the blob-storage bucket named by baseURL, which must be
// in the form 'provider://name[/path]'. The accepted providers are "file"
// for the local filesystem (e.g., for testing), "gs" for Google Cloud
// Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, baseURL string) (*blob.Bucket, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: parsing bucket URL %q: %v", baseURL, err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.OpenBucket(path.Join(u.Host, u.Path), nil)
	case "gs":
		return gsBucket(ctx, u.Host)
	case "s3":
		return s3Bucket(ctx, u.Host)
	}
	return nil, fmt.Errorf("storage: invalid bucket provider %q", u.Scheme)
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

// s3Bucket opens an S3 bucket using the usual AWS environment variables for
// credentials. AWS_REGION defaults to us-east-2.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	s, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}
