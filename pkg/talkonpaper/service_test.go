package talkonpaper_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/access"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/media"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/repo/memory"
	"golang.org/x/crypto/bcrypt"
)

// recordingSigner signs every key and remembers which keys it saw.
type recordingSigner struct {
	mu   sync.Mutex
	keys []string
	err  error
	meta *media.ObjectInfo
}

func (s *recordingSigner) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("https://media.test/%s/%s?X-Amz-Expires=%d", bucket, key, int(ttl.Seconds())), nil
}

func (s *recordingSigner) Head(ctx context.Context, bucket, key string) (*media.ObjectInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.meta == nil {
		return nil, media.ErrObjectNotFound
	}
	return s.meta, nil
}

func (s *recordingSigner) signed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

type fixture struct {
	svc     talkonpaper.Service
	repo    talkonpaper.Repository
	signer  *recordingSigner
	speaker *talkonpaper.Speaker
	paper   *talkonpaper.Paper
}

func newFixture(t *testing.T, opts ...talkonpaper.Option) *fixture {
	t.Helper()
	repo := memory.New()
	signer := &recordingSigner{}
	resolver := media.New(signer, media.WithBucket("talkonpaper-media"))

	options := append([]talkonpaper.Option{
		talkonpaper.WithRepository(repo),
		talkonpaper.WithResolver(resolver),
		talkonpaper.WithPasswordCost(bcrypt.MinCost),
	}, opts...)
	svc, err := talkonpaper.New(options...)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC()
	speaker := &talkonpaper.Speaker{ID: uuid.New(), FullName: "Dr. Amina Patel", Affiliation: "University of Cape Town", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateSpeaker(ctx, speaker))
	paper := &talkonpaper.Paper{
		ID:               uuid.New(),
		Title:            "Adaptive Water Infrastructure for Semi-Arid Regions",
		Abstract:         "Modular water systems enabling resilience against droughts.",
		Authors:          "Amina Patel, Javier Ruiz",
		DOIOrURL:         "10.1234/adapt-water.2025",
		PublicationYear:  2025,
		LanguageOriginal: "en",
		PDFObjectKey:     "papers/adapt-water.pdf",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.CreatePaper(ctx, paper))

	return &fixture{svc: svc, repo: repo, signer: signer, speaker: speaker, paper: paper}
}

func (f *fixture) addTalk(t *testing.T, talk *talkonpaper.Talk) *talkonpaper.Talk {
	t.Helper()
	talk.ID = uuid.New()
	talk.PaperID = f.paper.ID
	talk.SpeakerID = f.speaker.ID
	talk.CreatedAt = time.Now().UTC()
	talk.UpdatedAt = talk.CreatedAt
	require.NoError(t, f.repo.CreateTalk(context.Background(), talk))
	return talk
}

func TestServiceCreation(t *testing.T) {
	_, err := talkonpaper.New()
	assert.Error(t, err)

	svc, err := talkonpaper.New(talkonpaper.WithRepository(memory.New()))
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGetTalkDetail_AnonymousViewerOnRegisteredTalk(t *testing.T) {
	f := newFixture(t)
	talk := f.addTalk(t, &talkonpaper.Talk{
		Title:           "Adaptive Water Infrastructure",
		AccessLevel:     "registered",
		VideoObjectKey:  "talks/a.mp4",
		PreviewVideoKey: "previews/a.mp4",
	})

	detail, err := f.svc.GetTalkDetail(context.Background(), talk.ID, nil)
	require.NoError(t, err)

	assert.False(t, detail.HasAccess)
	assert.Equal(t, access.ModePreview, detail.Mode)
	assert.Equal(t, access.TierRegistered, detail.RequiredTier)
	assert.Empty(t, detail.VideoURL)
	assert.Empty(t, detail.AudioURL)
	assert.Equal(t, "https://media.test/talkonpaper-media/previews/a.mp4?X-Amz-Expires=900", detail.PreviewURL)
	assert.NotContains(t, f.signer.signed(), "talks/a.mp4")

	require.NotNil(t, detail.Paper)
	assert.Equal(t, f.paper.ID, detail.Paper.ID)
	require.NotNil(t, detail.Speaker)
	assert.Equal(t, "Dr. Amina Patel", detail.Speaker.FullName)
}

func TestGetTalkDetail_PremiumViewerOnPremiumTalk(t *testing.T) {
	f := newFixture(t)
	talk := f.addTalk(t, &talkonpaper.Talk{
		Title:          "Quantum Error Correction",
		AccessLevel:    "academic_premium",
		VideoObjectKey: "talks/q.mp4",
		AudioObjectKey: "audio/q.mp3",
	})
	viewer := &talkonpaper.User{ID: uuid.New(), SubscriptionLevel: "academic_premium"}

	detail, err := f.svc.GetTalkDetail(context.Background(), talk.ID, viewer)
	require.NoError(t, err)

	assert.True(t, detail.HasAccess)
	assert.Equal(t, access.ModeFull, detail.Mode)
	assert.NotEmpty(t, detail.VideoURL)
	assert.NotEmpty(t, detail.AudioURL)
	assert.Empty(t, detail.PreviewURL)
	assert.ElementsMatch(t, []string{"talks/q.mp4", "audio/q.mp3"}, f.signer.signed())
}

func TestGetTalkDetail_RegisteredViewerOnPremiumTalk(t *testing.T) {
	f := newFixture(t)
	talk := f.addTalk(t, &talkonpaper.Talk{
		Title:          "Quantum Error Correction",
		AccessLevel:    "academic_premium",
		VideoObjectKey: "talks/q.mp4",
	})
	viewer := &talkonpaper.User{ID: uuid.New(), SubscriptionLevel: "registered"}

	detail, err := f.svc.GetTalkDetail(context.Background(), talk.ID, viewer)
	require.NoError(t, err)
	assert.False(t, detail.HasAccess)
	assert.Equal(t, access.TierAcademicPremium, detail.RequiredTier)
	assert.Empty(t, detail.VideoURL)
}

func TestGetTalkDetail_UnknownAccessLevelFailsClosed(t *testing.T) {
	f := newFixture(t)
	talk := f.addTalk(t, &talkonpaper.Talk{
		Title:          "Misconfigured",
		AccessLevel:    "gold",
		VideoObjectKey: "talks/m.mp4",
	})

	for _, level := range []string{"registered", "academic_premium"} {
		t.Run(level, func(t *testing.T) {
			viewer := &talkonpaper.User{ID: uuid.New(), SubscriptionLevel: level}

			detail, err := f.svc.GetTalkDetail(context.Background(), talk.ID, viewer)
			require.NoError(t, err)
			assert.False(t, detail.HasAccess)
			assert.Equal(t, access.ModePreview, detail.Mode)
			assert.Equal(t, access.TierAcademicPremium, detail.RequiredTier)
			assert.Empty(t, detail.VideoURL)
		})
	}
	assert.NotContains(t, f.signer.signed(), "talks/m.mp4")
}

func TestGetTalkDetail_PremiumViewerOnRegisteredTalk(t *testing.T) {
	f := newFixture(t)
	talk := f.addTalk(t, &talkonpaper.Talk{
		Title:           "Adaptive Water Infrastructure",
		AccessLevel:     "registered",
		VideoObjectKey:  "talks/a.mp4",
		PreviewVideoKey: "previews/a.mp4",
	})
	viewer := &talkonpaper.User{ID: uuid.New(), SubscriptionLevel: "academic_premium"}

	detail, err := f.svc.GetTalkDetail(context.Background(), talk.ID, viewer)
	require.NoError(t, err)

	assert.True(t, detail.HasAccess)
	assert.Equal(t, access.ModeFull, detail.Mode)
	assert.Equal(t, access.TierRegistered, detail.RequiredTier)
	assert.Equal(t, "https://media.test/talkonpaper-media/talks/a.mp4?X-Amz-Expires=900", detail.VideoURL)
	assert.Contains(t, f.signer.signed(), "talks/a.mp4")
}

func TestGetTalkDetail_Thumbnails(t *testing.T) {
	f := newFixture(t)

	absolute := "https://images.example.org/water.jpeg?w=1200"
	talk := f.addTalk(t, &talkonpaper.Talk{Title: "Absolute", AccessLevel: "public", ThumbnailObjectKey: absolute})
	detail, err := f.svc.GetTalkDetail(context.Background(), talk.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, absolute, detail.ThumbnailURL)
	assert.Empty(t, f.signer.signed())

	f.paper = &talkonpaper.Paper{ID: uuid.New(), Title: "Second", DOIOrURL: "10.1234/second", PublicationYear: 2024}
	require.NoError(t, f.repo.CreatePaper(context.Background(), f.paper))
	talk = f.addTalk(t, &talkonpaper.Talk{Title: "Keyed", AccessLevel: "academic_premium", ThumbnailObjectKey: "thumbs/k.jpg"})
	detail, err = f.svc.GetTalkDetail(context.Background(), talk.ID, nil)
	require.NoError(t, err)
	assert.False(t, detail.HasAccess)
	assert.Equal(t, "https://media.test/talkonpaper-media/thumbs/k.jpg?X-Amz-Expires=900", detail.ThumbnailURL)
}

func TestGetTalkDetail_SigningFailureStillRenders(t *testing.T) {
	f := newFixture(t)
	f.signer.err = errors.New("endpoint unreachable")
	talk := f.addTalk(t, &talkonpaper.Talk{
		Title:           "Public talk",
		AccessLevel:     "public",
		VideoObjectKey:  "talks/p.mp4",
		PreviewVideoKey: "previews/p.mp4",
	})

	detail, err := f.svc.GetTalkDetail(context.Background(), talk.ID, nil)
	require.NoError(t, err)
	assert.True(t, detail.HasAccess)
	assert.Empty(t, detail.VideoURL)
	assert.Empty(t, detail.PreviewURL)
	assert.Equal(t, "Public talk", detail.Talk.Title)
}

func TestGetTalkDetail_NoResolverConfigured(t *testing.T) {
	repo := memory.New()
	svc, err := talkonpaper.New(talkonpaper.WithRepository(repo))
	require.NoError(t, err)

	ctx := context.Background()
	speaker := &talkonpaper.Speaker{ID: uuid.New(), FullName: "S"}
	paper := &talkonpaper.Paper{ID: uuid.New(), DOIOrURL: "10.1/x"}
	require.NoError(t, repo.CreateSpeaker(ctx, speaker))
	require.NoError(t, repo.CreatePaper(ctx, paper))
	talk := &talkonpaper.Talk{ID: uuid.New(), PaperID: paper.ID, SpeakerID: speaker.ID, AccessLevel: "public", VideoObjectKey: "v.mp4"}
	require.NoError(t, repo.CreateTalk(ctx, talk))

	detail, err := svc.GetTalkDetail(ctx, talk.ID, nil)
	require.NoError(t, err)
	assert.True(t, detail.HasAccess)
	assert.Empty(t, detail.VideoURL)
}

func TestGetTalkDetail_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetTalkDetail(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, talkonpaper.ErrTalkNotFound)

	var catalogErr *talkonpaper.CatalogError
	require.True(t, errors.As(err, &catalogErr))
	assert.Equal(t, "talk", catalogErr.Entity)
}

func TestDecisionObserver(t *testing.T) {
	type observed struct {
		content, viewer access.Tier
		decision        access.Decision
	}
	var got []observed
	f := newFixture(t, talkonpaper.WithDecisionObserver(func(content, viewer access.Tier, d access.Decision) {
		got = append(got, observed{content, viewer, d})
	}))
	talk := f.addTalk(t, &talkonpaper.Talk{Title: "Observed", AccessLevel: "registered"})

	_, err := f.svc.GetTalkDetail(context.Background(), talk.ID, &talkonpaper.User{SubscriptionLevel: "bogus"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, access.TierRegistered, got[0].content)
	assert.Equal(t, access.TierPublic, got[0].viewer)
	assert.False(t, got[0].decision.HasAccess)
}

func TestGetTalkMediaMeta(t *testing.T) {
	f := newFixture(t)
	modified := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	f.signer.meta = &media.ObjectInfo{Key: "talks/r.mp4", Size: 4096, ContentType: "video/mp4", LastModified: modified}
	talk := f.addTalk(t, &talkonpaper.Talk{Title: "Registered", AccessLevel: "registered", VideoObjectKey: "talks/r.mp4"})

	meta, decision, err := f.svc.GetTalkMediaMeta(context.Background(), talk.ID, nil)
	require.NoError(t, err)
	assert.False(t, decision.HasAccess)
	assert.True(t, meta.IsZero())

	viewer := &talkonpaper.User{SubscriptionLevel: "registered"}
	meta, decision, err = f.svc.GetTalkMediaMeta(context.Background(), talk.ID, viewer)
	require.NoError(t, err)
	assert.True(t, decision.HasAccess)
	assert.Equal(t, int64(4096), meta.Size)
	assert.Equal(t, "video/mp4", meta.ContentType)
	assert.True(t, modified.Equal(meta.LastModified))
}

func TestListAndFeaturedTalks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f.paper = &talkonpaper.Paper{ID: uuid.New(), DOIOrURL: fmt.Sprintf("10.1234/p%d", i), PublicationYear: 2020 + i}
		require.NoError(t, f.repo.CreatePaper(ctx, f.paper))
		f.addTalk(t, &talkonpaper.Talk{Title: fmt.Sprintf("Talk %d on Water", i), AccessLevel: "public"})
		time.Sleep(time.Millisecond)
	}

	featured, err := f.svc.FeaturedTalks(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 3)
	assert.Equal(t, "Talk 3 on Water", featured[0].Title)

	found, err := f.svc.ListTalks(ctx, talkonpaper.ListTalksRequest{Query: "  talk 1 "})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Talk 1 on Water", found[0].Title)
}

func TestGetPaperDetail(t *testing.T) {
	ctx := context.Background()

	t.Run("pdf gated by linked talk", func(t *testing.T) {
		f := newFixture(t)
		f.addTalk(t, &talkonpaper.Talk{Title: "Premium", AccessLevel: "academic_premium"})

		detail, err := f.svc.GetPaperDetail(ctx, f.paper.ID, nil)
		require.NoError(t, err)
		assert.True(t, detail.VerifiedReference)
		require.NotNil(t, detail.Talk)
		assert.Empty(t, detail.PDFURL)

		detail, err = f.svc.GetPaperDetail(ctx, f.paper.ID, &talkonpaper.User{SubscriptionLevel: "academic_premium"})
		require.NoError(t, err)
		assert.Contains(t, detail.PDFURL, "papers/adapt-water.pdf")
	})

	t.Run("paper without talk is public", func(t *testing.T) {
		f := newFixture(t)
		detail, err := f.svc.GetPaperDetail(ctx, f.paper.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, detail.Talk)
		assert.NotEmpty(t, detail.PDFURL)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.GetPaperDetail(ctx, uuid.New(), nil)
		assert.ErrorIs(t, err, talkonpaper.ErrPaperNotFound)
	})
}

func TestGetSpeakerProfile(t *testing.T) {
	f := newFixture(t)
	f.addTalk(t, &talkonpaper.Talk{Title: "Adaptive Water", AccessLevel: "public"})

	profile, err := f.svc.GetSpeakerProfile(context.Background(), f.speaker.ID)
	require.NoError(t, err)
	assert.Equal(t, f.speaker.ID, profile.Speaker.ID)
	assert.Len(t, profile.Talks, 1)

	_, err = f.svc.GetSpeakerProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, talkonpaper.ErrSpeakerNotFound)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, talkonpaper.RegisterRequest{
		Email:           "  Reader@Example.org ",
		Password:        "secret1",
		PasswordConfirm: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "reader@example.org", user.Email)
	assert.Equal(t, talkonpaper.RoleViewer, user.Role)
	assert.Equal(t, "public", user.SubscriptionLevel)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	_, err = f.svc.Register(ctx, talkonpaper.RegisterRequest{Email: "reader@example.org", Password: "secret1", PasswordConfirm: "secret1"})
	assert.ErrorIs(t, err, talkonpaper.ErrDuplicateEmail)

	authed, err := f.svc.Authenticate(ctx, "READER@example.org", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = f.svc.Authenticate(ctx, "reader@example.org", "wrong-password")
	assert.ErrorIs(t, err, talkonpaper.ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "nobody@example.org", "secret1")
	assert.ErrorIs(t, err, talkonpaper.ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, talkonpaper.ErrInvalidRequest)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		req   talkonpaper.RegisterRequest
		field string
	}{
		{"missing email", talkonpaper.RegisterRequest{Password: "secret1", PasswordConfirm: "secret1"}, "email"},
		{"bad email", talkonpaper.RegisterRequest{Email: "nope", Password: "secret1", PasswordConfirm: "secret1"}, "email"},
		{"short password", talkonpaper.RegisterRequest{Email: "a@example.org", Password: "abc", PasswordConfirm: "abc"}, "password"},
		{"mismatch", talkonpaper.RegisterRequest{Email: "a@example.org", Password: "secret1", PasswordConfirm: "secret2"}, "password_confirm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, talkonpaper.ErrInvalidRequest)

			var verr *talkonpaper.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestInactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.CreateUser(ctx, talkonpaper.CreateUserRequest{Email: "old@example.org", Password: "secret1"})
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, f.repo.UpdateUser(ctx, user))

	_, err = f.svc.Authenticate(ctx, "old@example.org", "secret1")
	assert.ErrorIs(t, err, talkonpaper.ErrInactiveAccount)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin, err := f.svc.CreateUser(ctx, talkonpaper.CreateUserRequest{
		Email:             "admin@example.org",
		Password:          "secret1",
		Role:              talkonpaper.RoleAdmin,
		SubscriptionLevel: "Academic_Premium",
	})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "academic_premium", admin.SubscriptionLevel)

	_, err = f.svc.CreateUser(ctx, talkonpaper.CreateUserRequest{Email: "x@example.org", Password: "secret1", SubscriptionLevel: "gold"})
	assert.ErrorIs(t, err, talkonpaper.ErrInvalidTier)

	_, err = f.svc.CreateUser(ctx, talkonpaper.CreateUserRequest{Email: "y@example.org", Password: "secret1", Role: "owner"})
	assert.ErrorIs(t, err, talkonpaper.ErrInvalidRequest)
}

func TestChangeSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.CreateUser(ctx, talkonpaper.CreateUserRequest{Email: "sub@example.org", Password: "secret1"})
	require.NoError(t, err)

	steps := []struct {
		action talkonpaper.SubscriptionAction
		want   string
	}{
		{talkonpaper.ActionUpgradeRegistered, "registered"},
		{talkonpaper.ActionUpgradePremium, "academic_premium"},
		{talkonpaper.ActionDowngrade, "public"},
	}
	for _, step := range steps {
		updated, err := f.svc.ChangeSubscription(ctx, talkonpaper.ChangeSubscriptionRequest{UserID: user.ID, Action: step.action})
		require.NoError(t, err)
		assert.Equal(t, step.want, updated.SubscriptionLevel)

		stored, err := f.svc.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, step.want, stored.SubscriptionLevel)
	}

	_, err = f.svc.ChangeSubscription(ctx, talkonpaper.ChangeSubscriptionRequest{UserID: user.ID, Action: "upgrade_gold"})
	assert.ErrorIs(t, err, talkonpaper.ErrInvalidRequest)

	_, err = f.svc.ChangeSubscription(ctx, talkonpaper.ChangeSubscriptionRequest{UserID: uuid.New(), Action: talkonpaper.ActionDowngrade})
	assert.ErrorIs(t, err, talkonpaper.ErrUserNotFound)
}

func validCreateTalkRequest() talkonpaper.CreateTalkRequest {
	return talkonpaper.CreateTalkRequest{
		SpeakerName:        "Prof. Kenji Watanabe",
		SpeakerAffiliation: "Kyoto University",
		PaperTitle:         "Surface Codes in Practice",
		PaperAuthors:       "Kenji Watanabe",
		PaperDOI:           "10.5555/surface-codes",
		PaperYear:          2024,
		TalkTitle:          "Surface Codes in Practice",
		TalkDuration:       900,
		TalkDate:           "2024-11-02",
		VideoObjectKey:     "talks/surface.mp4",
	}
}

func TestCreateTalk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	talk, err := f.svc.CreateTalk(ctx, validCreateTalkRequest())
	require.NoError(t, err)
	assert.Equal(t, "public", talk.AccessLevel)
	require.NotNil(t, talk.TalkDate)
	assert.Equal(t, "2024-11-02", talk.TalkDate.Format("2006-01-02"))
	assert.Equal(t, 15, talk.DurationMinutes())
	assert.Equal(t, "surface-codes-in-practice", talk.Slug())

	paper, err := f.repo.GetPaper(ctx, talk.PaperID)
	require.NoError(t, err)
	assert.Equal(t, "Abstract not provided.", paper.Abstract)
	assert.Equal(t, "en", paper.LanguageOriginal)

	t.Run("paper already has a talk", func(t *testing.T) {
		_, err := f.svc.CreateTalk(ctx, validCreateTalkRequest())
		assert.ErrorIs(t, err, talkonpaper.ErrTalkExists)
	})

	t.Run("speaker reused by name", func(t *testing.T) {
		req := validCreateTalkRequest()
		req.PaperDOI = "10.5555/second"
		req.SpeakerAffiliation = "Ignored"
		second, err := f.svc.CreateTalk(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, talk.SpeakerID, second.SpeakerID)
	})

	t.Run("existing paper without talk is reused", func(t *testing.T) {
		req := validCreateTalkRequest()
		req.PaperDOI = f.paper.DOIOrURL
		req.AccessLevel = "Registered"
		created, err := f.svc.CreateTalk(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, f.paper.ID, created.PaperID)
		assert.Equal(t, "registered", created.AccessLevel)
	})

	t.Run("invalid access level", func(t *testing.T) {
		req := validCreateTalkRequest()
		req.PaperDOI = "10.5555/third"
		req.AccessLevel = "vip"
		_, err := f.svc.CreateTalk(ctx, req)
		assert.ErrorIs(t, err, talkonpaper.ErrInvalidTier)
	})

	t.Run("bad date", func(t *testing.T) {
		req := validCreateTalkRequest()
		req.PaperDOI = "10.5555/fourth"
		req.TalkDate = "02/11/2024"
		_, err := f.svc.CreateTalk(ctx, req)
		assert.ErrorIs(t, err, talkonpaper.ErrInvalidRequest)
	})

	t.Run("missing required field", func(t *testing.T) {
		req := validCreateTalkRequest()
		req.VideoObjectKey = ""
		_, err := f.svc.CreateTalk(ctx, req)
		var verr *talkonpaper.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "video_object_key", verr.Field)
	})
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		req := validCreateTalkRequest()
		req.PaperDOI = fmt.Sprintf("10.5555/stats-%d", i)
		_, err := f.svc.CreateTalk(ctx, req)
		require.NoError(t, err)
	}

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Talks)
	assert.Equal(t, 7, stats.Papers)
	assert.Equal(t, 2, stats.Speakers)
	assert.Len(t, stats.LatestTalks, 5)
	assert.Len(t, stats.LatestPapers, 5)
}
