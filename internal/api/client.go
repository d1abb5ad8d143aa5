package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "POSTBOARD_HTTP_TIMEOUT"
	requestIDHeader    = "X-Request-ID"
)

// Client is a simple HTTP client for the postboard API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/info", nil, &resp)
	return resp, err
}

// CreatePost sends a JSON create request; any image travels base64 encoded.
func (c *Client) CreatePost(ctx context.Context, req PostCreateRequest) (PostResponse, error) {
	var resp PostResponse
	err := c.do(ctx, http.MethodPost, "/posts", req, &resp)
	return resp, err
}

// CreatePostMultipart streams the image as a multipart file field.
func (c *Client) CreatePostMultipart(ctx context.Context, req PostCreateRequest, filename string, image io.Reader) (PostResponse, error) {
	var resp PostResponse

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{{"title", req.Title}, {"body", req.Body}, {"author", req.Author}}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return resp, err
		}
	}
	if image != nil {
		if filename == "" {
			filename = "image"
		}
		part, err := mw.CreateFormFile("image", filename)
		if err != nil {
			return resp, err
		}
		if _, err := io.Copy(part, image); err != nil {
			return resp, err
		}
	}
	if err := mw.Close(); err != nil {
		return resp, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/posts", &buf)
	if err != nil {
		return resp, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func (c *Client) ListPosts(ctx context.Context) ([]PostResponse, error) {
	var resp []PostResponse
	err := c.do(ctx, http.MethodGet, "/posts", nil, &resp)
	return resp, err
}

func (c *Client) GetPost(ctx context.Context, id int64) (PostResponse, error) {
	var resp PostResponse
	err := c.do(ctx, http.MethodGet, postPath(id), nil, &resp)
	return resp, err
}

func (c *Client) Vote(ctx context.Context, id int64, direction string) (PostResponse, error) {
	var resp PostResponse
	err := c.do(ctx, http.MethodPost, postPath(id)+"/vote", VoteRequest{Direction: direction}, &resp)
	return resp, err
}

// GetImage copies the stored image to w and returns its content type.
func (c *Client) GetImage(ctx context.Context, key string, w io.Writer) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/images/"+url.PathEscape(key), nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", 0, decodeError(resp)
	}
	n, err := io.Copy(w, resp.Body)
	return resp.Header.Get("Content-Type"), n, err
}

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.UserMessage != "" {
		code, numeric := ParseInternalMessage(errResp.Error.InternalMessage)
		return &APIError{
			Status:    resp.StatusCode,
			Code:      code,
			ErrorCode: numeric,
			Message:   errResp.Error.UserMessage,
			RequestID: resp.Header.Get(requestIDHeader),
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
