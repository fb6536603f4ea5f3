// Package pkgstore publishes HBase release tarballs where every host's
// supervisor can fetch them, keyed by content checksum.
package pkgstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/supervisor"
)

// URLTTL is how long a published download URL stays valid.
const URLTTL = 6 * time.Hour

// Client is the object store subset the package store needs.
type Client interface {
	Identity(ctx context.Context) (string, error)
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
	UploadFile(ctx context.Context, bucket, key, localPath string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Store publishes tarballs from a local package root to a bucket.
type Store struct {
	client Client
	bucket string
	prefix string
	root   string
}

// New creates a package store.
func New(client Client, bucket, prefix, packageRoot string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix, root: packageRoot}
}

// TarballPath is where the release tarball of artifact-version is expected locally.
func (s *Store) TarballPath(artifact, version string) string {
	return filepath.Join(s.root, fmt.Sprintf("%s-%s.tar.gz", artifact, version))
}

// Publish uploads the tarball unless an object with the same checksum already
// exists, and returns the reference hosts install from.
func (s *Store) Publish(ctx context.Context, artifact, version string) (supervisor.Package, Result, error) {
	local := s.TarballPath(artifact, version)
	sum, err := Checksum(local)
	if err != nil {
		return supervisor.Package{}, Result{}, err
	}

	name := fmt.Sprintf("%s-%s-%s.tar.gz", artifact, version, sum[:12])
	key := path.Join(s.prefix, artifact, name)

	res := Result{Key: key}
	if res.Publisher, err = s.client.Identity(ctx); err != nil {
		return supervisor.Package{}, res, fmt.Errorf("verifying AWS credentials: %w", err)
	}
	exists, err := s.client.ObjectExists(ctx, s.bucket, key)
	if err != nil {
		return supervisor.Package{}, res, fmt.Errorf("checking s3://%s/%s: %w", s.bucket, key, err)
	}
	if !exists {
		if err := s.client.UploadFile(ctx, s.bucket, key, local); err != nil {
			return supervisor.Package{}, res, fmt.Errorf("uploading %s: %w", local, err)
		}
		res.Uploaded = true
	}

	url, err := s.client.PresignGet(ctx, s.bucket, key, URLTTL)
	if err != nil {
		return supervisor.Package{}, res, fmt.Errorf("presigning s3://%s/%s: %w", s.bucket, key, err)
	}

	return supervisor.Package{
		Artifact: artifact,
		Version:  version,
		Name:     name,
		Checksum: sum,
		URL:      url,
	}, res, nil
}

// Result tells what Publish did.
type Result struct {
	Key       string
	Uploaded  bool
	Publisher string // caller ARN
}

// Checksum returns the hex blake3 digest of a file.
func Checksum(localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Dependency("package", fmt.Sprintf("tarball %s not found", localPath))
		}
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", localPath, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
