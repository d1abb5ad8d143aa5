package api

import "time"

// PostCreateRequest is the JSON payload for POST /posts.
// Image carries the raw attachment bytes, base64 encoded on the wire.
type PostCreateRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Author string `json:"author,omitempty"`
	Image  []byte `json:"image,omitempty"`
}

// VoteRequest is the payload for POST /posts/{id}/vote.
type VoteRequest struct {
	Direction string `json:"direction"`
}

// PostResponse is the public shape of a post.
type PostResponse struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Author         string    `json:"author"`
	Score          int64     `json:"score"`
	ImageReference string    `json:"image_reference,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// InfoResponse is the response from GET /info.
type InfoResponse struct {
	StoreDriver    string `json:"store_driver"`
	BlobBackend    string `json:"blob_backend"`
	SchemaVersion  int    `json:"schema_version"`
	TotalPosts     int    `json:"total_posts"`
	TotalScore     int64  `json:"total_score"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

// ErrorBody carries the two messages of every error response.
type ErrorBody struct {
	UserMessage     string `json:"userMessage"`
	InternalMessage string `json:"internalMessage"`
}

// ErrorResponse is the JSON envelope of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
