package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// fakeS3 implements the subset of s3iface.S3API used by S3CAS.
type fakeS3 struct {
	s3iface.S3API

	mu           sync.Mutex
	buckets      map[string]bool
	objects      map[string][]byte
	contentTypes map[string]string
	putCount     int
	headErr      error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets:      map[string]bool{},
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
	}
}

func (f *fakeS3) HeadBucketWithContext(_ aws.Context, in *s3.HeadBucketInput, _ ...request.Option) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[aws.StringValue(in.Bucket)] {
		return nil, awserr.NewRequestFailure(awserr.New(s3NotFoundCode, "Not Found", nil), 404, "req-1")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucketWithContext(_ aws.Context, in *s3.CreateBucketInput, _ ...request.Option) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[aws.StringValue(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.NewRequestFailure(awserr.New(s3NotFoundCode, "Not Found", nil), 404, "req-2")
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.StringValue(in.Key)
	f.objects[key] = data
	f.contentTypes[key] = aws.StringValue(in.ContentType)
	f.putCount++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.NewRequestFailure(awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil), 404, "req-3")
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func newTestS3CAS(t *testing.T, fake *fakeS3, maxBytes int64) *S3CAS {
	t.Helper()
	cas, err := NewS3CASWithClient(fake, "images", "/board/", maxBytes)
	if err != nil {
		t.Fatalf("new s3 cas: %v", err)
	}
	return cas
}

func TestS3CASPutIsIdempotent(t *testing.T) {
	fake := newFakeS3()
	cas := newTestS3CAS(t, fake, 0)
	ctx := context.Background()

	first, err := cas.Put(ctx, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("put first: %v", err)
	}
	second, err := cas.Put(ctx, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("put second: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results, got %#v and %#v", first, second)
	}
	if fake.putCount != 1 {
		t.Fatalf("expected one upload, got %d", fake.putCount)
	}

	wantKey := "board/sha256/" + first.SHA256[0:2] + "/" + first.SHA256[2:4] + "/" + first.SHA256
	if _, ok := fake.objects[wantKey]; !ok {
		t.Fatalf("expected object at %s, have %v", wantKey, fake.objects)
	}
	if fake.contentTypes[wantKey] != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type %q", fake.contentTypes[wantKey])
	}

	got, err := Get(ctx, cas, first.BlobKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected hello, got %q", string(got))
	}
}

func TestS3CASOpenMissing(t *testing.T) {
	cas := newTestS3CAS(t, newFakeS3(), 0)
	missing := strings.Repeat("ab", 32)
	if _, err := cas.Open(context.Background(), missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := cas.Open(context.Background(), "not-a-digest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed key, got %v", err)
	}
}

func TestS3CASPutRejectsOversizedContent(t *testing.T) {
	fake := newFakeS3()
	cas := newTestS3CAS(t, fake, 4)
	if _, err := cas.Put(context.Background(), strings.NewReader("too big")); err == nil {
		t.Fatal("expected size error")
	}
	if fake.putCount != 0 {
		t.Fatalf("expected no upload, got %d", fake.putCount)
	}
}

func TestS3CASPutSurfacesHeadFailure(t *testing.T) {
	fake := newFakeS3()
	fake.headErr = awserr.NewRequestFailure(awserr.New("InternalError", "boom", nil), 500, "req-4")
	cas := newTestS3CAS(t, fake, 0)
	if _, err := cas.Put(context.Background(), strings.NewReader("x")); err == nil {
		t.Fatal("expected head failure to surface")
	}
	if fake.putCount != 0 {
		t.Fatalf("expected no upload, got %d", fake.putCount)
	}
}

func TestS3CASEnsureBucket(t *testing.T) {
	fake := newFakeS3()
	cas := newTestS3CAS(t, fake, 0)
	if err := cas.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if !fake.buckets["images"] {
		t.Fatal("expected bucket to be created")
	}
	if err := cas.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("ensure existing bucket: %v", err)
	}
}

func TestNewS3CASWithClientValidation(t *testing.T) {
	if _, err := NewS3CASWithClient(nil, "b", "", 0); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewS3CASWithClient(newFakeS3(), " ", "", 0); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}
