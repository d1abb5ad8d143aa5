package server

import (
	"io"
	"net/http"
	"strconv"
)

const immutableCacheControl = "public, max-age=31536000, immutable"

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.service.OpenImage(r.Context(), r.PathValue("key"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer img.Reader.Close()

	// Content never changes for a key, so the key is a strong validator.
	etag := `"` + img.Key + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", immutableCacheControl)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", img.MediaType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if img.SizeBytes >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(img.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, img.Reader); err != nil {
		s.log().Error("stream image", "key", img.Key, "error", err, "request_id", requestIDFromContext(r.Context()))
	}
}
