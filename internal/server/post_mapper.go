package server

import (
	"net/url"

	"postboard/internal/api"
	"postboard/internal/models"
)

// postResponseFromModel is the only translation from the stored record to the wire shape.
func postResponseFromModel(post models.Post) api.PostResponse {
	resp := api.PostResponse{
		ID:        post.ID,
		Title:     post.Title,
		Body:      post.Body,
		Author:    post.Author,
		Score:     post.Score,
		CreatedAt: post.CreatedAt,
	}
	if post.HasImage() {
		resp.ImageReference = post.ImageKey
		resp.ImageURL = imageURL(post.ImageKey)
	}
	return resp
}

func postResponsesFromModels(posts []models.Post) []api.PostResponse {
	out := make([]api.PostResponse, 0, len(posts))
	for _, post := range posts {
		out = append(out, postResponseFromModel(post))
	}
	return out
}

func imageURL(key string) string {
	return "/images/" + url.PathEscape(key)
}
