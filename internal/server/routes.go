package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /info", s.handleInfo)

	// Posts.
	mux.HandleFunc("POST /posts", s.handleCreatePost)
	mux.HandleFunc("GET /posts", s.handleListPosts)
	mux.HandleFunc("GET /posts/{id}", s.handleGetPost)
	mux.HandleFunc("POST /posts/{id}/vote", s.handleVote)

	// Images.
	mux.HandleFunc("GET /images/{key}", s.handleGetImage)

	// Everything else gets the JSON error envelope instead of the mux's plain text.
	mux.HandleFunc("/", s.handleNotFound)

	return mux
}
