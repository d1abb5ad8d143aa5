package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	casAlgorithmPrefix = "sha256"
)

// LocalCAS stores blob bytes in a local content-addressed tree.
type LocalCAS struct {
	root string
}

var _ BlobStore = (*LocalCAS)(nil)

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Put spools r into a temp file while hashing it, then moves the file to its
// digest path. Storing content that already exists leaves the stored copy
// untouched.
func (c *LocalCAS) Put(ctx context.Context, r io.Reader) (BlobPutResult, error) {
	if c == nil {
		return BlobPutResult{}, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return BlobPutResult{}, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return BlobPutResult{}, err
	}

	tmpPath, result, err := c.spool(r)
	if err != nil {
		return BlobPutResult{}, err
	}
	// Removing the spool file is a no-op once it has been renamed.
	defer os.Remove(tmpPath)

	if err := ctx.Err(); err != nil {
		return BlobPutResult{}, err
	}
	if err := c.commit(tmpPath, result.BlobKey); err != nil {
		return BlobPutResult{}, err
	}
	return result, nil
}

func (c *LocalCAS) spool(r io.Reader) (string, BlobPutResult, error) {
	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "put-*")
	if err != nil {
		return "", BlobPutResult{}, err
	}

	h := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(tmp, h), r)
	if copyErr == nil {
		copyErr = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", BlobPutResult{}, err
	}

	digest := hex.EncodeToString(h.Sum(nil))
	return tmp.Name(), BlobPutResult{SHA256: digest, SizeBytes: n, BlobKey: digest}, nil
}

func (c *LocalCAS) commit(tmpPath, digest string) error {
	dst := filepath.Join(c.root, filepath.FromSlash(casPathFromDigest(digest)))
	if exists, err := fileExists(dst); err != nil || exists {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		// A concurrent writer with the same content may have won the rename.
		if exists, _ := fileExists(dst); exists {
			return nil
		}
		return err
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Open returns a reader for blob key content.
func (c *LocalCAS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (c *LocalCAS) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !ValidKey(key) {
		return "", ErrNotFound
	}
	return filepath.Join(c.root, filepath.FromSlash(casPathFromDigest(key))), nil
}
