package talkonpaper

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
)

// Service defines the main interface for the talkonpaper catalog.
// A nil viewer is an anonymous visitor.
type Service interface {
	// Talk operations
	GetTalkDetail(ctx context.Context, talkID uuid.UUID, viewer *User) (*TalkDetail, error)
	ListTalks(ctx context.Context, req ListTalksRequest) ([]*Talk, error)
	FeaturedTalks(ctx context.Context) ([]*Talk, error)
	GetTalkMediaMeta(ctx context.Context, talkID uuid.UUID, viewer *User) (media.Meta, access.Decision, error)
	CreateTalk(ctx context.Context, req CreateTalkRequest) (*Talk, error)

	// Paper operations
	ListPapers(ctx context.Context, req ListPapersRequest) ([]*Paper, error)
	GetPaperDetail(ctx context.Context, paperID uuid.UUID, viewer *User) (*PaperDetail, error)

	// Speaker operations
	ListSpeakers(ctx context.Context) ([]*Speaker, error)
	GetSpeakerProfile(ctx context.Context, speakerID uuid.UUID) (*SpeakerProfile, error)

	// Account operations
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ChangeSubscription(ctx context.Context, req ChangeSubscriptionRequest) (*User, error)

	// Admin operations
	Stats(ctx context.Context) (*Stats, error)
}
