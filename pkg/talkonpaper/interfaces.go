package talkonpaper

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
)

// Repository defines the interface for catalog and account persistence
type Repository interface {
	// Talk operations
	CreateTalk(ctx context.Context, talk *Talk) error
	GetTalk(ctx context.Context, id uuid.UUID) (*Talk, error)
	GetTalkByPaperID(ctx context.Context, paperID uuid.UUID) (*Talk, error)
	ListTalks(ctx context.Context, params ListTalksParams) ([]*Talk, error)
	UpdateTalk(ctx context.Context, talk *Talk) error

	// Paper operations
	CreatePaper(ctx context.Context, paper *Paper) error
	GetPaper(ctx context.Context, id uuid.UUID) (*Paper, error)
	GetPaperByReference(ctx context.Context, doiOrURL string) (*Paper, error)
	ListPapers(ctx context.Context, params ListPapersParams) ([]*Paper, error)

	// Speaker operations
	CreateSpeaker(ctx context.Context, speaker *Speaker) error
	GetSpeaker(ctx context.Context, id uuid.UUID) (*Speaker, error)
	GetSpeakerByName(ctx context.Context, fullName string) (*Speaker, error)
	ListSpeakers(ctx context.Context) ([]*Speaker, error)

	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error

	// Counts for the admin dashboard
	Count(ctx context.Context) (*Counts, error)
}

// ListTalksParams filters and orders talk listings. Talks are returned
// newest first.
type ListTalksParams struct {
	// Query matches the talk title case-insensitively
	Query     string
	SpeakerID *uuid.UUID
	Limit     int
}

// ListPapersParams filters paper listings. Papers are returned by
// publication year descending unless ByCreated is set.
type ListPapersParams struct {
	Year      int
	ByCreated bool
	Limit     int
}

// Counts holds catalog totals.
type Counts struct {
	Talks    int
	Papers   int
	Speakers int
	Users    int
}

// DecisionObserver is notified of every access decision the service makes.
type DecisionObserver func(content access.Tier, viewer access.Tier, decision access.Decision)
