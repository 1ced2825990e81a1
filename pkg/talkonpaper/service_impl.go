package talkonpaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
	"golang.org/x/crypto/bcrypt"
)

const (
	featuredTalks = 3
	latestEntries = 5
	talkDateFmt   = "2006-01-02"
)

// service implements the Service interface
type service struct {
	repository   Repository
	resolver     *media.Resolver
	logger       *slog.Logger
	validator    *validator.Validate
	observe      DecisionObserver
	passwordCost int
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithResolver sets the signed URL resolver. Without one every media URL is
// reported as unavailable.
func WithResolver(resolver *media.Resolver) Option {
	return func(s *service) {
		s.resolver = resolver
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDecisionObserver registers a callback for access decisions
func WithDecisionObserver(fn DecisionObserver) Option {
	return func(s *service) {
		s.observe = fn
	}
}

// WithPasswordCost sets the bcrypt cost used for new password hashes
func WithPasswordCost(cost int) Option {
	return func(s *service) {
		s.passwordCost = cost
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		logger:       slog.Default(),
		validator:    newValidator(),
		passwordCost: bcrypt.DefaultCost,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.resolver == nil {
		s.resolver = media.New(nil, media.WithLogger(s.logger))
	}

	return s, nil
}

// Talk operations

func (s *service) GetTalkDetail(ctx context.Context, talkID uuid.UUID, viewer *User) (*TalkDetail, error) {
	talk, err := s.repository.GetTalk(ctx, talkID)
	if err != nil {
		return nil, &CatalogError{Entity: "talk", ID: talkID.String(), Op: "get", Err: err}
	}

	paper, err := s.repository.GetPaper(ctx, talk.PaperID)
	if err != nil && !errors.Is(err, ErrPaperNotFound) {
		return nil, &CatalogError{Entity: "paper", ID: talk.PaperID.String(), Op: "get", Err: err}
	}
	speaker, err := s.repository.GetSpeaker(ctx, talk.SpeakerID)
	if err != nil && !errors.Is(err, ErrSpeakerNotFound) {
		return nil, &CatalogError{Entity: "speaker", ID: talk.SpeakerID.String(), Op: "get", Err: err}
	}

	decision := s.decide(talk.AccessLevel, viewer)
	detail := &TalkDetail{
		Talk:         talk,
		Paper:        paper,
		Speaker:      speaker,
		HasAccess:    decision.HasAccess,
		Mode:         decision.Mode,
		RequiredTier: decision.Required,
	}

	if decision.HasAccess {
		detail.VideoURL = s.resolve(ctx, talk.VideoObjectKey)
		detail.AudioURL = s.resolve(ctx, talk.AudioObjectKey)
	}
	detail.PreviewURL = s.resolve(ctx, talk.PreviewVideoKey)
	detail.ThumbnailURL = s.thumbnail(ctx, talk.ThumbnailObjectKey)

	return detail, nil
}

func (s *service) ListTalks(ctx context.Context, req ListTalksRequest) ([]*Talk, error) {
	talks, err := s.repository.ListTalks(ctx, ListTalksParams{
		Query: strings.TrimSpace(req.Query),
		Limit: req.Limit,
	})
	if err != nil {
		return nil, &CatalogError{Entity: "talk", Op: "list", Err: err}
	}
	return talks, nil
}

func (s *service) FeaturedTalks(ctx context.Context) ([]*Talk, error) {
	return s.ListTalks(ctx, ListTalksRequest{Limit: featuredTalks})
}

func (s *service) GetTalkMediaMeta(ctx context.Context, talkID uuid.UUID, viewer *User) (media.Meta, access.Decision, error) {
	talk, err := s.repository.GetTalk(ctx, talkID)
	if err != nil {
		return media.Meta{}, access.Decision{}, &CatalogError{Entity: "talk", ID: talkID.String(), Op: "get", Err: err}
	}

	decision := s.decide(talk.AccessLevel, viewer)
	if !decision.HasAccess {
		return media.Meta{}, decision, nil
	}
	return s.resolver.Meta(ctx, talk.VideoObjectKey), decision, nil
}

func (s *service) CreateTalk(ctx context.Context, req CreateTalkRequest) (*Talk, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	level := strings.TrimSpace(req.AccessLevel)
	if level == "" {
		level = string(access.TierPublic)
	}
	tier, ok := access.ParseTier(level)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, level)
	}

	var talkDate *time.Time
	if req.TalkDate != "" {
		d, err := time.Parse(talkDateFmt, req.TalkDate)
		if err != nil {
			return nil, invalid("talk_date", "must be formatted as YYYY-MM-DD")
		}
		talkDate = &d
	}

	now := time.Now().UTC()

	paper, err := s.repository.GetPaperByReference(ctx, req.PaperDOI)
	switch {
	case err == nil:
		if _, err := s.repository.GetTalkByPaperID(ctx, paper.ID); err == nil {
			return nil, &CatalogError{Entity: "talk", ID: paper.ID.String(), Op: "create", Err: ErrTalkExists}
		} else if !errors.Is(err, ErrTalkNotFound) {
			return nil, &CatalogError{Entity: "talk", ID: paper.ID.String(), Op: "get", Err: err}
		}
	case errors.Is(err, ErrPaperNotFound):
		paper = nil
	default:
		return nil, &CatalogError{Entity: "paper", ID: req.PaperDOI, Op: "get", Err: err}
	}

	speaker, err := s.repository.GetSpeakerByName(ctx, req.SpeakerName)
	if errors.Is(err, ErrSpeakerNotFound) {
		speaker = &Speaker{
			ID:               uuid.New(),
			FullName:         req.SpeakerName,
			Affiliation:      req.SpeakerAffiliation,
			Country:          req.SpeakerCountry,
			BioShort:         req.SpeakerBio,
			WebsiteOrProfile: req.SpeakerSite,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repository.CreateSpeaker(ctx, speaker); err != nil {
			return nil, &CatalogError{Entity: "speaker", ID: speaker.ID.String(), Op: "create", Err: err}
		}
		s.logger.Info("Created speaker", "speaker_id", speaker.ID, "name", speaker.FullName)
	} else if err != nil {
		return nil, &CatalogError{Entity: "speaker", ID: req.SpeakerName, Op: "get", Err: err}
	}

	if paper == nil {
		paper = &Paper{
			ID:                 uuid.New(),
			Title:              req.PaperTitle,
			Abstract:           orDefault(req.PaperAbstract, "Abstract not provided."),
			Authors:            req.PaperAuthors,
			DOIOrURL:           req.PaperDOI,
			JournalOrPublisher: req.PaperJournal,
			PublicationYear:    req.PaperYear,
			LanguageOriginal:   orDefault(req.PaperLanguage, "en"),
			Keywords:           req.PaperKeywords,
			PDFObjectKey:       req.PaperPDFKey,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.repository.CreatePaper(ctx, paper); err != nil {
			return nil, &CatalogError{Entity: "paper", ID: paper.ID.String(), Op: "create", Err: err}
		}
	}

	talk := &Talk{
		ID:                 uuid.New(),
		PaperID:            paper.ID,
		SpeakerID:          speaker.ID,
		Title:              req.TalkTitle,
		Summary:            req.TalkSummary,
		DurationSeconds:    req.TalkDuration,
		TalkDate:           talkDate,
		AccessLevel:        string(tier),
		IsDubbed:           req.IsDubbed,
		VideoObjectKey:     req.VideoObjectKey,
		PreviewVideoKey:    req.PreviewVideoKey,
		AudioObjectKey:     req.AudioObjectKey,
		ThumbnailObjectKey: req.ThumbnailObjectKey,
		TranscriptText:     req.TranscriptText,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repository.CreateTalk(ctx, talk); err != nil {
		return nil, &CatalogError{Entity: "talk", ID: talk.ID.String(), Op: "create", Err: err}
	}

	s.logger.Info("Created talk", "talk_id", talk.ID, "paper_id", paper.ID, "access_level", talk.AccessLevel)
	return talk, nil
}

// Paper operations

func (s *service) ListPapers(ctx context.Context, req ListPapersRequest) ([]*Paper, error) {
	papers, err := s.repository.ListPapers(ctx, ListPapersParams{Year: req.Year, Limit: req.Limit})
	if err != nil {
		return nil, &CatalogError{Entity: "paper", Op: "list", Err: err}
	}
	return papers, nil
}

func (s *service) GetPaperDetail(ctx context.Context, paperID uuid.UUID, viewer *User) (*PaperDetail, error) {
	paper, err := s.repository.GetPaper(ctx, paperID)
	if err != nil {
		return nil, &CatalogError{Entity: "paper", ID: paperID.String(), Op: "get", Err: err}
	}

	detail := &PaperDetail{Paper: paper, VerifiedReference: paper.VerifiedReference()}

	talk, err := s.repository.GetTalkByPaperID(ctx, paperID)
	if err != nil && !errors.Is(err, ErrTalkNotFound) {
		return nil, &CatalogError{Entity: "talk", ID: paperID.String(), Op: "get", Err: err}
	}
	detail.Talk = talk

	if paper.PDFObjectKey != "" {
		level := string(access.TierPublic)
		if talk != nil {
			level = talk.AccessLevel
		}
		if s.decide(level, viewer).HasAccess {
			detail.PDFURL = s.resolve(ctx, paper.PDFObjectKey)
		}
	}

	return detail, nil
}

// Speaker operations

func (s *service) ListSpeakers(ctx context.Context) ([]*Speaker, error) {
	speakers, err := s.repository.ListSpeakers(ctx)
	if err != nil {
		return nil, &CatalogError{Entity: "speaker", Op: "list", Err: err}
	}
	return speakers, nil
}

func (s *service) GetSpeakerProfile(ctx context.Context, speakerID uuid.UUID) (*SpeakerProfile, error) {
	speaker, err := s.repository.GetSpeaker(ctx, speakerID)
	if err != nil {
		return nil, &CatalogError{Entity: "speaker", ID: speakerID.String(), Op: "get", Err: err}
	}

	talks, err := s.repository.ListTalks(ctx, ListTalksParams{SpeakerID: &speakerID})
	if err != nil {
		return nil, &CatalogError{Entity: "talk", ID: speakerID.String(), Op: "list", Err: err}
	}

	return &SpeakerProfile{Speaker: speaker, Talks: talks}, nil
}

// Account operations

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	req.PasswordConfirm = strings.TrimSpace(req.PasswordConfirm)

	if err := s.validate(req); err != nil {
		return nil, err
	}

	return s.createUser(ctx, req.Email, req.Password, RoleViewer, access.TierPublic)
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, invalid("", "email and password are required")
	}

	user, err := s.repository.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, &CatalogError{Entity: "user", ID: email, Op: "get", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	return user, nil
}

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = RoleViewer
	}
	if !role.IsValid() {
		return nil, invalid("role", fmt.Sprintf("unknown role %q", role))
	}

	tier := access.TierPublic
	if req.SubscriptionLevel != "" {
		var ok bool
		if tier, ok = access.ParseTier(req.SubscriptionLevel); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTier, req.SubscriptionLevel)
		}
	}

	return s.createUser(ctx, req.Email, req.Password, role, tier)
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repository.GetUser(ctx, id)
	if err != nil {
		return nil, &CatalogError{Entity: "user", ID: id.String(), Op: "get", Err: err}
	}
	return user, nil
}

func (s *service) ChangeSubscription(ctx context.Context, req ChangeSubscriptionRequest) (*User, error) {
	var tier access.Tier
	switch req.Action {
	case ActionUpgradeRegistered:
		tier = access.TierRegistered
	case ActionUpgradePremium:
		tier = access.TierAcademicPremium
	case ActionDowngrade:
		tier = access.TierPublic
	default:
		return nil, invalid("action", fmt.Sprintf("unknown action %q", req.Action))
	}

	user, err := s.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	previous := user.SubscriptionLevel
	user.SubscriptionLevel = string(tier)
	user.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateUser(ctx, user); err != nil {
		return nil, &CatalogError{Entity: "user", ID: user.ID.String(), Op: "update", Err: err}
	}

	s.logger.Info("Subscription changed", "user_id", user.ID, "from", previous, "to", user.SubscriptionLevel)
	return user, nil
}

// Admin operations

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.repository.Count(ctx)
	if err != nil {
		return nil, &CatalogError{Entity: "catalog", Op: "count", Err: err}
	}
	talks, err := s.repository.ListTalks(ctx, ListTalksParams{Limit: latestEntries})
	if err != nil {
		return nil, &CatalogError{Entity: "talk", Op: "list", Err: err}
	}
	papers, err := s.repository.ListPapers(ctx, ListPapersParams{ByCreated: true, Limit: latestEntries})
	if err != nil {
		return nil, &CatalogError{Entity: "paper", Op: "list", Err: err}
	}

	return &Stats{
		Talks:        counts.Talks,
		Papers:       counts.Papers,
		Speakers:     counts.Speakers,
		LatestTalks:  talks,
		LatestPapers: papers,
	}, nil
}

// Helpers

func (s *service) decide(contentLevel string, viewer *User) access.Decision {
	viewerLevel := ""
	if viewer != nil {
		viewerLevel = viewer.SubscriptionLevel
	}
	decision := access.Evaluate(contentLevel, viewerLevel)
	if s.observe != nil {
		s.observe(decision.Required, access.ViewerTier(viewerLevel), decision)
	}
	return decision
}

func (s *service) resolve(ctx context.Context, key string) string {
	url, _ := s.resolver.Resolve(ctx, key, 0)
	return url
}

func (s *service) thumbnail(ctx context.Context, key string) string {
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	return s.resolve(ctx, key)
}

func (s *service) createUser(ctx context.Context, email, password string, role Role, tier access.Tier) (*User, error) {
	if _, err := s.repository.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, &CatalogError{Entity: "user", ID: email, Op: "get", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:                uuid.New(),
		Email:             email,
		PasswordHash:      string(hash),
		Role:              role,
		SubscriptionLevel: string(tier),
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repository.CreateUser(ctx, user); err != nil {
		return nil, &CatalogError{Entity: "user", ID: user.ID.String(), Op: "create", Err: err}
	}

	s.logger.Info("Created user", "user_id", user.ID, "role", user.Role, "tier", user.SubscriptionLevel)
	return user, nil
}

func (s *service) validate(req interface{}) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "email":
		return invalid(fe.Field(), "must be a valid email address")
	case "min":
		return invalid(fe.Field(), fmt.Sprintf("must be at least %s characters", fe.Param()))
	case "eqfield":
		return invalid(fe.Field(), "does not match")
	case "gt", "gte":
		return invalid(fe.Field(), "must be a positive number")
	}
	return invalid(fe.Field(), "is invalid")
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
