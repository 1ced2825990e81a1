package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
)

// TalkResponse is a talk with its derived fields
type TalkResponse struct {
	*talkonpaper.Talk
	Slug            string `json:"slug"`
	DurationMinutes int    `json:"duration_minutes"`
}

// TalkDetailResponse is the body of GET /talks/{id}
type TalkDetailResponse struct {
	*talkonpaper.TalkDetail
	Slug            string `json:"slug"`
	DurationMinutes int    `json:"duration_minutes"`
	CanonicalURL    string `json:"canonical_url"`
}

// MediaMetaResponse describes the primary asset. All fields are omitted
// when the metadata could not be fetched.
type MediaMetaResponse struct {
	Size         int64      `json:"size,omitempty"`
	ContentType  string     `json:"content_type,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

func newTalkResponse(t *talkonpaper.Talk) TalkResponse {
	return TalkResponse{Talk: t, Slug: t.Slug(), DurationMinutes: t.DurationMinutes()}
}

func newTalkResponses(talks []*talkonpaper.Talk) []TalkResponse {
	out := make([]TalkResponse, 0, len(talks))
	for _, t := range talks {
		out = append(out, newTalkResponse(t))
	}
	return out
}

func parseID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// ListTalks lists talks newest first, optionally filtered by ?q=
func (h *Handler) ListTalks(w http.ResponseWriter, r *http.Request) {
	talks, err := h.service.ListTalks(r.Context(), talkonpaper.ListTalksRequest{
		Query: r.URL.Query().Get("q"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, newTalkResponses(talks))
}

// FeaturedTalks returns the newest talks for the home page
func (h *Handler) FeaturedTalks(w http.ResponseWriter, r *http.Request) {
	talks, err := h.service.FeaturedTalks(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, newTalkResponses(talks))
}

// GetTalk returns a talk with media URLs gated by the viewer's tier. The
// optional slug segment is ignored.
func (h *Handler) GetTalk(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "Invalid talk ID")
		return
	}

	detail, err := h.service.GetTalkDetail(r.Context(), id, ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	slug := detail.Talk.Slug()
	render.JSON(w, r, TalkDetailResponse{
		TalkDetail:      detail,
		Slug:            slug,
		DurationMinutes: detail.Talk.DurationMinutes(),
		CanonicalURL:    h.canonicalURL("/talks/" + detail.Talk.ID.String() + "/" + slug),
	})
}

// GetTalkMediaMeta returns metadata of the primary video for viewers who
// may watch it
func (h *Handler) GetTalkMediaMeta(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "Invalid talk ID")
		return
	}

	meta, decision, err := h.service.GetTalkMediaMeta(r.Context(), id, ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !decision.HasAccess {
		writeError(w, r, http.StatusForbidden, "access_denied",
			"This talk requires the "+string(decision.Required)+" tier")
		return
	}

	resp := MediaMetaResponse{Size: meta.Size, ContentType: meta.ContentType}
	if !meta.LastModified.IsZero() {
		lm := meta.LastModified
		resp.LastModified = &lm
	}
	render.JSON(w, r, resp)
}

// TierResponse is one entry of GET /tiers
type TierResponse struct {
	Tier    access.Tier `json:"tier"`
	Rank    int         `json:"rank"`
	Current bool        `json:"current"`
}

// TiersResponse lists subscription tiers from least to most privileged
type TiersResponse struct {
	Tiers    []TierResponse `json:"tiers"`
	Current  access.Tier    `json:"current"`
	Features Features       `json:"features"`
}

// ListTiers describes the subscription ladder for the premium page
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	current := talkonpaper.ViewerTier(ViewerFromContext(r.Context()))
	resp := TiersResponse{Current: current, Features: h.features}
	for _, t := range access.Tiers() {
		resp.Tiers = append(resp.Tiers, TierResponse{Tier: t, Rank: t.Rank(), Current: t == current})
	}
	render.JSON(w, r, resp)
}
