package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/blog"
)

// PostSummary is a blog post without its body
type PostSummary struct {
	Slug    string    `json:"slug"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Author  string    `json:"author"`
	Summary string    `json:"summary"`
	Tags    []string  `json:"tags"`
}

// PostListResponse is the body of GET /blog
type PostListResponse struct {
	Posts      []PostSummary `json:"posts"`
	Tags       []string      `json:"tags"`
	CurrentTag string        `json:"current_tag,omitempty"`
}

// PostResponse is the body of GET /blog/{slug}
type PostResponse struct {
	Post         *blog.Post    `json:"post"`
	Related      []PostSummary `json:"related"`
	CanonicalURL string        `json:"canonical_url"`
}

func summarize(posts []blog.Post) []PostSummary {
	out := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, PostSummary{
			Slug:    p.Slug,
			Title:   p.Title,
			Date:    p.Date,
			Author:  p.Author,
			Summary: p.Summary,
			Tags:    p.Tags,
		})
	}
	return out
}

// ListPosts lists blog posts, optionally filtered by ?tag=
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	posts, err := h.blog.Tagged(r.Context(), tag)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	tags, err := h.blog.Tags(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, PostListResponse{Posts: summarize(posts), Tags: tags, CurrentTag: tag})
}

// GetPost returns one post and up to three related posts
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := h.blog.Post(r.Context(), slug)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	related, err := h.blog.Related(r.Context(), slug, relatedPosts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, PostResponse{
		Post:         post,
		Related:      summarize(related),
		CanonicalURL: h.canonicalURL("/blog/" + slug),
	})
}
