package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// ErrNotFound is returned when no blob is stored under a key.
var ErrNotFound = errors.New("blob not found")

var keyRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// BlobPutResult describes one persisted blob payload.
type BlobPutResult struct {
	SHA256    string
	SizeBytes int64
	BlobKey   string
}

// BlobStore is the content-addressed byte storage used by PostService.
// Keys are lowercase hex SHA-256 digests of the stored content.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (BlobPutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ValidKey reports whether key has the shape of a content digest.
func ValidKey(key string) bool {
	return keyRegex.MatchString(key)
}

// PutBytes stores data and returns its content key.
func PutBytes(ctx context.Context, bs BlobStore, data []byte) (string, error) {
	if bs == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	res, err := bs.Put(ctx, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return res.BlobKey, nil
}

// Get reads the full content stored under key.
func Get(ctx context.Context, bs BlobStore, key string) ([]byte, error) {
	if bs == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	rc, err := bs.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func casPathFromDigest(digest string) string {
	return fmt.Sprintf("%s/%s/%s/%s", casAlgorithmPrefix, digest[0:2], digest[2:4], digest)
}
