package talkonpaper

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
)

// Role is a user's role on the site.
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleSpeaker Role = "speaker"
	RoleAdmin   Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleViewer, RoleSpeaker, RoleAdmin:
		return true
	}
	return false
}

// Speaker is a researcher presenting talks.
type Speaker struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"full_name"`
	Affiliation      string    `json:"affiliation"`
	Country          string    `json:"country,omitempty"`
	BioShort         string    `json:"bio_short,omitempty"`
	WebsiteOrProfile string    `json:"website_or_profile,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Paper is the publication a talk presents.
type Paper struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	Abstract           string    `json:"abstract"`
	Authors            string    `json:"authors"`
	DOIOrURL           string    `json:"doi_or_url"`
	JournalOrPublisher string    `json:"journal_or_publisher,omitempty"`
	PublicationYear    int       `json:"publication_year"`
	LanguageOriginal   string    `json:"language_original"`
	Keywords           string    `json:"keywords,omitempty"`
	PDFObjectKey       string    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

var (
	doiPattern = regexp.MustCompile(`(?i)^10\.\d{4,9}/[-._;()/:A-Z0-9]+$`)
	urlPattern = regexp.MustCompile(`^https?://`)
)

// VerifiedReference reports whether the paper carries a DOI-like identifier
// or an http(s) URL.
func (p *Paper) VerifiedReference() bool {
	return doiPattern.MatchString(p.DOIOrURL) || urlPattern.MatchString(p.DOIOrURL)
}

// Talk is a recorded presentation of a paper.
type Talk struct {
	ID                 uuid.UUID  `json:"id"`
	PaperID            uuid.UUID  `json:"paper_id"`
	SpeakerID          uuid.UUID  `json:"speaker_id"`
	SpeakerUserID      *uuid.UUID `json:"speaker_user_id,omitempty"`
	Title              string     `json:"title"`
	Summary            string     `json:"summary,omitempty"`
	DurationSeconds    int        `json:"duration_seconds"`
	TalkDate           *time.Time `json:"talk_date,omitempty"`
	AccessLevel        string     `json:"access_level"`
	IsDubbed           bool       `json:"is_dubbed"`
	VideoObjectKey     string     `json:"-"`
	PreviewVideoKey    string     `json:"-"`
	AudioObjectKey     string     `json:"-"`
	ThumbnailObjectKey string     `json:"-"`
	TranscriptText     string     `json:"transcript_text,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slug is the URL-friendly form of the title.
func (t *Talk) Slug() string {
	return strings.Trim(slugSeparators.ReplaceAllString(strings.ToLower(t.Title), "-"), "-")
}

// DurationMinutes is the duration truncated to whole minutes.
func (t *Talk) DurationMinutes() int {
	return t.DurationSeconds / 60
}

// User is an account. An authenticated user is the viewer of a request.
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	Role              Role      `json:"role"`
	SubscriptionLevel string    `json:"subscription_level"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ViewerTier is the tier a possibly anonymous viewer holds.
func ViewerTier(u *User) access.Tier {
	if u == nil {
		return access.TierPublic
	}
	return access.ViewerTier(u.SubscriptionLevel)
}

// TalkDetail is everything the presentation layer needs to render a talk.
// Empty URLs mean the asset is absent or unavailable.
type TalkDetail struct {
	Talk         *Talk       `json:"talk"`
	Paper        *Paper      `json:"paper,omitempty"`
	Speaker      *Speaker    `json:"speaker,omitempty"`
	HasAccess    bool        `json:"has_access"`
	Mode         access.Mode `json:"mode"`
	RequiredTier access.Tier `json:"required_tier"`
	VideoURL     string      `json:"video_url,omitempty"`
	PreviewURL   string      `json:"preview_url,omitempty"`
	AudioURL     string      `json:"audio_url,omitempty"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
}

// PaperDetail is a paper with its talk and, when permitted, a PDF link.
type PaperDetail struct {
	Paper             *Paper `json:"paper"`
	Talk              *Talk  `json:"talk,omitempty"`
	VerifiedReference bool   `json:"verified_reference"`
	PDFURL            string `json:"pdf_url,omitempty"`
}

// SpeakerProfile is a speaker with their talks.
type SpeakerProfile struct {
	Speaker *Speaker `json:"speaker"`
	Talks   []*Talk  `json:"talks"`
}

// Stats summarizes the catalog for the admin dashboard.
type Stats struct {
	Talks        int      `json:"talks"`
	Papers       int      `json:"papers"`
	Speakers     int      `json:"speakers"`
	LatestTalks  []*Talk  `json:"latest_talks"`
	LatestPapers []*Paper `json:"latest_papers"`
}
