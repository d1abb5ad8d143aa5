package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"postboard/internal/api"
	"postboard/internal/blobstore"
	"postboard/internal/models"
	"postboard/internal/store"
)

const sniffLength = 512

// PostService centralizes post validation, image storage and voting.
type PostService struct {
	store store.PostStore
	blobs blobstore.BlobStore

	maxImageBytes     int64
	allowedMediaTypes map[string]struct{}
}

// AddPostInput describes one post creation.
type AddPostInput struct {
	Title  string
	Body   string
	Author string
	Image  []byte
}

// ImageContent is an open image stream plus its sniffed media type.
type ImageContent struct {
	Reader    io.ReadCloser
	MediaType string
	Key       string
	SizeBytes int64
}

// NewPostService constructs a PostService.
func NewPostService(postStore store.PostStore, blobs blobstore.BlobStore) *PostService {
	return &PostService{store: postStore, blobs: blobs, maxImageBytes: DefaultMaxUploadBytes}
}

// ConfigureImagePolicy sets the upload size ceiling and the media type allowlist.
// An empty allowlist accepts any media type.
func (s *PostService) ConfigureImagePolicy(maxBytes int64, allowedMediaTypes []string) {
	if s == nil {
		return
	}
	if maxBytes > 0 {
		s.maxImageBytes = maxBytes
	}
	normalized := map[string]struct{}{}
	for _, raw := range allowedMediaTypes {
		mediaType, err := normalizeMediaType(raw)
		if err != nil || mediaType == "" {
			continue
		}
		normalized[mediaType] = struct{}{}
	}
	if len(normalized) == 0 {
		s.allowedMediaTypes = nil
		return
	}
	s.allowedMediaTypes = normalized
}

// AddPost validates the input, stores the image if any, and creates the post.
// The blob is written before the row so a stored image_key always resolves.
func (s *PostService) AddPost(ctx context.Context, input AddPostInput) (api.PostResponse, error) {
	var resp api.PostResponse

	if err := models.ValidatePost(input.Title, input.Body); err != nil {
		return resp, validationFailure(err)
	}

	imageKey := ""
	if len(input.Image) > 0 {
		key, err := s.storeImage(ctx, input.Image)
		if err != nil {
			return resp, err
		}
		imageKey = key
	}

	created, err := s.store.CreatePost(ctx, &models.Post{
		Title:    input.Title,
		Body:     input.Body,
		Author:   input.Author,
		ImageKey: imageKey,
	})
	if err != nil {
		return resp, classifyStoreError(err)
	}
	return postResponseFromModel(*created), nil
}

// ListPosts returns every post in insertion order.
func (s *PostService) ListPosts(ctx context.Context) ([]api.PostResponse, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return postResponsesFromModels(posts), nil
}

// GetPost returns one post or a not-found error.
func (s *PostService) GetPost(ctx context.Context, id int64) (api.PostResponse, error) {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return api.PostResponse{}, storeFailure(err)
	}
	if post == nil {
		return api.PostResponse{}, postNotFound(id)
	}
	return postResponseFromModel(*post), nil
}

// Vote applies one up or down vote to a post.
func (s *PostService) Vote(ctx context.Context, id int64, direction string) (api.PostResponse, error) {
	if strings.TrimSpace(direction) == "" {
		return api.PostResponse{}, badRequestCode(fmt.Errorf("direction is required"), ErrCodeMissingRequired)
	}
	dir, err := models.ParseVoteDirection(direction)
	if err != nil {
		return api.PostResponse{}, badRequestCode(err, ErrCodeInvalidDirection)
	}

	post, err := s.store.AdjustScore(ctx, id, dir.Delta())
	if err != nil {
		return api.PostResponse{}, classifyStoreError(err)
	}
	if post == nil {
		return api.PostResponse{}, postNotFound(id)
	}
	return postResponseFromModel(*post), nil
}

// OpenImage opens a stored image. The caller must close the returned reader.
func (s *PostService) OpenImage(ctx context.Context, key string) (*ImageContent, error) {
	key = strings.TrimSpace(key)
	if !blobstore.ValidKey(key) {
		return nil, notFoundCode(fmt.Errorf("image %s not found", key), ErrCodeImageNotFound)
	}
	if s.blobs == nil {
		return nil, internalError(fmt.Errorf("image storage is not configured"))
	}

	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		return nil, classifyBlobError(err, key)
	}

	buffered := bufio.NewReaderSize(rc, sniffLength)
	peek, err := buffered.Peek(sniffLength)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		_ = rc.Close()
		return nil, blobFailure(fmt.Errorf("read image %s: %w", key, err))
	}

	size := int64(-1)
	if st, ok := rc.(interface{ Stat() (os.FileInfo, error) }); ok {
		if info, err := st.Stat(); err == nil {
			size = info.Size()
		}
	}

	return &ImageContent{
		Reader:    readCloser{Reader: buffered, Closer: rc},
		MediaType: http.DetectContentType(peek),
		Key:       key,
		SizeBytes: size,
	}, nil
}

func (s *PostService) storeImage(ctx context.Context, image []byte) (string, error) {
	if s.maxImageBytes > 0 && int64(len(image)) > s.maxImageBytes {
		return "", badRequestCode(fmt.Errorf("image exceeds %d bytes", s.maxImageBytes), ErrCodeImageTooLarge)
	}
	mediaType, _ := normalizeMediaType(http.DetectContentType(image))
	if err := s.validateAllowedMediaType(mediaType); err != nil {
		return "", err
	}
	if s.blobs == nil {
		return "", internalError(fmt.Errorf("image storage is not configured"))
	}

	key, err := blobstore.PutBytes(ctx, s.blobs, image)
	if err != nil {
		return "", blobFailure(fmt.Errorf("store image: %w", err))
	}
	return key, nil
}

func (s *PostService) validateAllowedMediaType(mediaType string) error {
	if len(s.allowedMediaTypes) == 0 {
		return nil
	}
	if _, ok := s.allowedMediaTypes[mediaType]; ok {
		return nil
	}
	return badRequestCode(fmt.Errorf("image media type %s is not allowed", mediaType), ErrCodeUnsupportedMediaType)
}

func postNotFound(id int64) error {
	return notFoundCode(fmt.Errorf("post %d not found", id), ErrCodePostNotFound)
}

func normalizeMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", badRequestCode(fmt.Errorf("invalid media type"), ErrCodeInvalidImage)
	}
	return strings.ToLower(strings.TrimSpace(parsed)), nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
