package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
)

// PaperDetailResponse is the body of GET /papers/{id}
type PaperDetailResponse struct {
	*talkonpaper.PaperDetail
	CanonicalURL string `json:"canonical_url"`
}

// SpeakerProfileResponse is the body of GET /speakers/{id}
type SpeakerProfileResponse struct {
	Speaker      *talkonpaper.Speaker `json:"speaker"`
	Talks        []TalkResponse       `json:"talks"`
	CanonicalURL string               `json:"canonical_url"`
}

// ListPapers lists papers by publication year, newest first. A
// non-numeric ?year= is ignored.
func (h *Handler) ListPapers(w http.ResponseWriter, r *http.Request) {
	var req talkonpaper.ListPapersRequest
	if year, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && year > 0 {
		req.Year = year
	}

	papers, err := h.service.ListPapers(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if papers == nil {
		papers = []*talkonpaper.Paper{}
	}
	render.JSON(w, r, papers)
}

// GetPaper returns a paper with its talk and, when the talk's tier allows
// it, a signed PDF link
func (h *Handler) GetPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "Invalid paper ID")
		return
	}

	detail, err := h.service.GetPaperDetail(r.Context(), id, ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, PaperDetailResponse{
		PaperDetail:  detail,
		CanonicalURL: h.canonicalURL("/papers/" + id.String()),
	})
}

// ListSpeakers lists speakers by name
func (h *Handler) ListSpeakers(w http.ResponseWriter, r *http.Request) {
	speakers, err := h.service.ListSpeakers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if speakers == nil {
		speakers = []*talkonpaper.Speaker{}
	}
	render.JSON(w, r, speakers)
}

// GetSpeaker returns a speaker with their talks
func (h *Handler) GetSpeaker(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "Invalid speaker ID")
		return
	}

	profile, err := h.service.GetSpeakerProfile(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, SpeakerProfileResponse{
		Speaker:      profile.Speaker,
		Talks:        newTalkResponses(profile.Talks),
		CanonicalURL: h.canonicalURL("/speakers/" + id.String()),
	})
}
