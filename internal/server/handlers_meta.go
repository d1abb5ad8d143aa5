package server

import (
	"fmt"
	"net/http"

	"postboard/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		StoreDriver:    info.Driver,
		BlobBackend:    s.opts.BlobBackend,
		SchemaVersion:  info.SchemaVersion,
		TotalPosts:     info.TotalPosts,
		TotalScore:     info.TotalScore,
		MaxUploadBytes: s.opts.MaxUploadBytes,
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("no route for %s %s", r.Method, r.URL.Path), ErrCodeRouteNotFound))
}
