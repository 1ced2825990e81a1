package talkonpaper

import "github.com/google/uuid"

// Request/Response DTOs

// ListTalksRequest contains parameters for listing talks
type ListTalksRequest struct {
	Query string
	Limit int
}

// ListPapersRequest contains parameters for listing papers
type ListPapersRequest struct {
	Year  int
	Limit int
}

// RegisterRequest contains parameters for self-service sign up
type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// CreateUserRequest contains parameters for creating an account directly,
// bypassing self-service defaults
type CreateUserRequest struct {
	Email             string `validate:"required,email"`
	Password          string `validate:"required,min=6"`
	Role              Role
	SubscriptionLevel string
}

// SubscriptionAction names a self-service tier change
type SubscriptionAction string

const (
	ActionUpgradeRegistered SubscriptionAction = "upgrade_registered"
	ActionUpgradePremium    SubscriptionAction = "upgrade_premium"
	ActionDowngrade         SubscriptionAction = "downgrade"
)

// ChangeSubscriptionRequest contains parameters for a tier change
type ChangeSubscriptionRequest struct {
	UserID uuid.UUID
	Action SubscriptionAction
}

// CreateTalkRequest contains parameters for publishing a talk together with
// its speaker and paper. An existing speaker is reused by full name and an
// existing paper by DOI or URL.
type CreateTalkRequest struct {
	SpeakerName        string `json:"speaker_name" validate:"required"`
	SpeakerAffiliation string `json:"speaker_affiliation" validate:"required"`
	SpeakerCountry     string `json:"speaker_country"`
	SpeakerBio         string `json:"speaker_bio"`
	SpeakerSite        string `json:"speaker_site"`

	PaperTitle    string `json:"paper_title" validate:"required"`
	PaperAuthors  string `json:"paper_authors" validate:"required"`
	PaperDOI      string `json:"paper_doi" validate:"required"`
	PaperYear     int    `json:"paper_year" validate:"required,gt=0"`
	PaperAbstract string `json:"paper_abstract"`
	PaperJournal  string `json:"paper_journal"`
	PaperLanguage string `json:"paper_language"`
	PaperKeywords string `json:"paper_keywords"`
	PaperPDFKey   string `json:"paper_pdf_key"`

	TalkTitle          string `json:"talk_title" validate:"required"`
	TalkSummary        string `json:"talk_summary"`
	TalkDuration       int    `json:"talk_duration" validate:"gte=0"`
	TalkDate           string `json:"talk_date"`
	AccessLevel        string `json:"access_level"`
	IsDubbed           bool   `json:"is_dubbed"`
	VideoObjectKey     string `json:"video_object_key" validate:"required"`
	PreviewVideoKey    string `json:"preview_video_key"`
	AudioObjectKey     string `json:"audio_object_key"`
	ThumbnailObjectKey string `json:"thumbnail_object_key"`
	TranscriptText     string `json:"transcript_text"`
}
