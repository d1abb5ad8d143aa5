package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

const (
	defaultS3Region   = "us-east-1"
	s3NotFoundCode    = "NotFound"
	sniffContentBytes = 512
)

// S3Config configures an S3-compatible (AWS S3, MinIO) blob backend.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	DisableSSL     bool
	MaxObjectBytes int64
}

// S3CAS stores blob bytes in an S3 bucket under content-addressed object keys.
type S3CAS struct {
	client   s3iface.S3API
	bucket   string
	prefix   string
	maxBytes int64
}

var _ BlobStore = (*S3CAS)(nil)

// NewS3CAS builds an S3 client session from cfg.
func NewS3CAS(cfg S3Config) (*S3CAS, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}
	awsCfg := &aws.Config{
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
		DisableSSL:       aws.Bool(cfg.DisableSSL),
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create s3 session")
	}
	return NewS3CASWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix, cfg.MaxObjectBytes)
}

// NewS3CASWithClient wraps an existing S3 API client.
func NewS3CASWithClient(client s3iface.S3API, bucket, prefix string, maxObjectBytes int64) (*S3CAS, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3CAS{client: client, bucket: bucket, prefix: prefix, maxBytes: maxObjectBytes}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (c *S3CAS) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	if !isS3NotFound(err) && s3ErrorCode(err) != s3.ErrCodeNoSuchBucket {
		return errors.Wrapf(err, "head bucket %q", c.bucket)
	}
	_, err = c.client.CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		if s3ErrorCode(err) == s3.ErrCodeBucketAlreadyOwnedByYou {
			return nil
		}
		return errors.Wrapf(err, "create bucket %q", c.bucket)
	}
	return nil
}

// Put buffers content, computes SHA-256, and uploads it unless the object already exists.
func (c *S3CAS) Put(ctx context.Context, r io.Reader) (BlobPutResult, error) {
	var zero BlobPutResult
	if c == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if c.maxBytes > 0 {
		r = io.LimitReader(r, c.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return zero, errors.Wrap(err, "read blob content")
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return zero, fmt.Errorf("blob exceeds %d bytes", c.maxBytes)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	result := BlobPutResult{SHA256: digest, SizeBytes: int64(len(data)), BlobKey: digest}
	objectKey := c.objectKey(digest)

	_, err = c.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err == nil {
		return result, nil
	}
	if !isS3NotFound(err) {
		return zero, errors.Wrapf(err, "head object %q", objectKey)
	}

	sniff := data
	if len(sniff) > sniffContentBytes {
		sniff = sniff[:sniffContentBytes]
	}
	_, err = c.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(http.DetectContentType(sniff)),
	})
	if err != nil {
		return zero, errors.Wrapf(err, "put object %q", objectKey)
	}
	return result, nil
}

// Open returns a reader for blob key content.
func (c *S3CAS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if c == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if !ValidKey(key) {
		return nil, ErrNotFound
	}
	objectKey := c.objectKey(key)
	out, err := c.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get object %q", objectKey)
	}
	return out.Body, nil
}

func (c *S3CAS) objectKey(digest string) string {
	return c.prefix + casPathFromDigest(digest)
}

func s3ErrorCode(err error) string {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code()
	}
	return ""
}

func isS3NotFound(err error) bool {
	switch s3ErrorCode(err) {
	case s3.ErrCodeNoSuchKey, s3NotFoundCode:
		return true
	case s3.ErrCodeNoSuchBucket:
		return false
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode() == http.StatusNotFound
	}
	return false
}
