package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"postboard/internal/api"
)

// Room for the non-file multipart fields and part headers.
const multipartOverhead = 1 << 20

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		input, err := s.decodeCreatePost(w, r)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		post, err := s.service.AddPost(r.Context(), input)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, post)
	})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.service.ListPosts(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	post, err := s.service.GetPost(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	var req api.VoteRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	post, err := s.service.Vote(r.Context(), id, req.Direction)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

// decodeCreatePost accepts either a JSON body with a base64 image or a multipart form.
func (s *Server) decodeCreatePost(w http.ResponseWriter, r *http.Request) (AddPostInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return s.decodeMultipartPost(w, r)
	}

	// base64 grows the payload by a third.
	limit := s.opts.MaxUploadBytes/3*4 + defaultJSONMaxBody
	var req api.PostCreateRequest
	if err := decodeJSON(w, r, &req, limit); err != nil {
		return AddPostInput{}, classifyDecodeJSONError(err)
	}
	return AddPostInput{Title: req.Title, Body: req.Body, Author: req.Author, Image: req.Image}, nil
}

func (s *Server) decodeMultipartPost(w http.ResponseWriter, r *http.Request) (AddPostInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.opts.MultipartMaxMemory); err != nil {
		return AddPostInput{}, classifyMultipartError(err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	input := AddPostInput{
		Title:  r.FormValue("title"),
		Body:   r.FormValue("body"),
		Author: r.FormValue("author"),
	}

	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return input, nil
	case err != nil:
		return AddPostInput{}, rejectInput(err, ErrCodeInvalidImage, "invalid image upload")
	}
	defer file.Close()

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		return AddPostInput{}, rejectInput(err, ErrCodeInvalidImage, "invalid image upload")
	}
	input.Image = data
	return input, nil
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return rejectInput(err, ErrCodeRequestTooLarge, "request body too large")
	}
	return rejectInput(err, ErrCodeInvalidArgument, "invalid multipart form")
}
