// Package repotest holds behavior every talkonpaper.Repository must share.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) talkonpaper.Repository

// Run executes the shared repository tests against repositories from newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("TalkOperations", func(t *testing.T) { testTalks(t, newRepo(t)) })
	t.Run("PaperOperations", func(t *testing.T) { testPapers(t, newRepo(t)) })
	t.Run("SpeakerOperations", func(t *testing.T) { testSpeakers(t, newRepo(t)) })
	t.Run("UserOperations", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("Count", func(t *testing.T) { testCount(t, newRepo(t)) })
}

// base is a fixed instant so ordering assertions do not depend on the clock.
var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// NewSpeaker builds a speaker created offset after a fixed instant.
func NewSpeaker(name string, offset time.Duration) *talkonpaper.Speaker {
	return &talkonpaper.Speaker{
		ID:          uuid.New(),
		FullName:    name,
		Affiliation: "University of Cape Town",
		Country:     "South Africa",
		CreatedAt:   base.Add(offset),
		UpdatedAt:   base.Add(offset),
	}
}

// NewPaper builds a paper with the given reference and year.
func NewPaper(ref string, year int, offset time.Duration) *talkonpaper.Paper {
	return &talkonpaper.Paper{
		ID:               uuid.New(),
		Title:            "Paper " + ref,
		Abstract:         "Abstract not provided.",
		Authors:          "Amina Patel, Javier Ruiz",
		DOIOrURL:         ref,
		PublicationYear:  year,
		LanguageOriginal: "en",
		PDFObjectKey:     "papers/" + ref + ".pdf",
		CreatedAt:        base.Add(offset),
		UpdatedAt:        base.Add(offset),
	}
}

// NewTalk builds a talk for paper and speaker.
func NewTalk(title string, paper *talkonpaper.Paper, speaker *talkonpaper.Speaker, level string, offset time.Duration) *talkonpaper.Talk {
	return &talkonpaper.Talk{
		ID:                 uuid.New(),
		PaperID:            paper.ID,
		SpeakerID:          speaker.ID,
		Title:              title,
		Summary:            "Design choices and outcomes.",
		DurationSeconds:    780,
		AccessLevel:        level,
		VideoObjectKey:     "talks/" + paper.DOIOrURL + ".mp4",
		PreviewVideoKey:    "previews/" + paper.DOIOrURL + ".mp4",
		ThumbnailObjectKey: "thumbs/" + paper.DOIOrURL + ".jpg",
		CreatedAt:          base.Add(offset),
		UpdatedAt:          base.Add(offset),
	}
}

func testTalks(t *testing.T, repo talkonpaper.Repository) {
	ctx := context.Background()

	speaker := NewSpeaker("Dr. Amina Patel", 0)
	require.NoError(t, repo.CreateSpeaker(ctx, speaker))
	other := NewSpeaker("Prof. Kenji Watanabe", time.Minute)
	require.NoError(t, repo.CreateSpeaker(ctx, other))

	water := NewPaper("10.1234/adapt-water.2025", 2025, 0)
	soil := NewPaper("10.1234/soil.2024", 2024, time.Minute)
	quantum := NewPaper("10.1234/quantum.2023", 2023, 2*time.Minute)
	for _, p := range []*talkonpaper.Paper{water, soil, quantum} {
		require.NoError(t, repo.CreatePaper(ctx, p))
	}

	first := NewTalk("Adaptive Water Infrastructure", water, speaker, "public", 0)
	second := NewTalk("Soil Carbon Markets", soil, speaker, "registered", time.Hour)
	third := NewTalk("Quantum Error Correction", quantum, other, "academic_premium", 2*time.Hour)
	date := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	first.TalkDate = &date
	first.IsDubbed = true
	first.AudioObjectKey = "audio/water.mp3"
	for _, talk := range []*talkonpaper.Talk{first, second, third} {
		require.NoError(t, repo.CreateTalk(ctx, talk))
	}

	t.Run("GetTalk", func(t *testing.T) {
		got, err := repo.GetTalk(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Title, got.Title)
		assert.Equal(t, first.PaperID, got.PaperID)
		assert.Equal(t, first.SpeakerID, got.SpeakerID)
		assert.Equal(t, "public", got.AccessLevel)
		assert.Equal(t, "talks/10.1234/adapt-water.2025.mp4", got.VideoObjectKey)
		assert.Equal(t, "audio/water.mp3", got.AudioObjectKey)
		assert.True(t, got.IsDubbed)
		require.NotNil(t, got.TalkDate)
		assert.True(t, date.Equal(*got.TalkDate))
	})

	t.Run("GetTalk not found", func(t *testing.T) {
		_, err := repo.GetTalk(ctx, uuid.New())
		assert.ErrorIs(t, err, talkonpaper.ErrTalkNotFound)
	})

	t.Run("GetTalkByPaperID", func(t *testing.T) {
		got, err := repo.GetTalkByPaperID(ctx, soil.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)

		_, err = repo.GetTalkByPaperID(ctx, uuid.New())
		assert.ErrorIs(t, err, talkonpaper.ErrTalkNotFound)
	})

	t.Run("one talk per paper", func(t *testing.T) {
		dup := NewTalk("Another take", water, other, "public", 3*time.Hour)
		assert.ErrorIs(t, repo.CreateTalk(ctx, dup), talkonpaper.ErrTalkExists)
	})

	t.Run("ListTalks newest first", func(t *testing.T) {
		talks, err := repo.ListTalks(ctx, talkonpaper.ListTalksParams{})
		require.NoError(t, err)
		require.Len(t, talks, 3)
		assert.Equal(t, third.ID, talks[0].ID)
		assert.Equal(t, second.ID, talks[1].ID)
		assert.Equal(t, first.ID, talks[2].ID)
	})

	t.Run("ListTalks limit", func(t *testing.T) {
		talks, err := repo.ListTalks(ctx, talkonpaper.ListTalksParams{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, talks, 2)
	})

	t.Run("ListTalks query is case-insensitive", func(t *testing.T) {
		talks, err := repo.ListTalks(ctx, talkonpaper.ListTalksParams{Query: "WATER"})
		require.NoError(t, err)
		require.Len(t, talks, 1)
		assert.Equal(t, first.ID, talks[0].ID)
	})

	t.Run("ListTalks query matches wildcards literally", func(t *testing.T) {
		for _, q := range []string{"%", "_", "W%R", "wat_r", `\`} {
			talks, err := repo.ListTalks(ctx, talkonpaper.ListTalksParams{Query: q})
			require.NoError(t, err)
			assert.Empty(t, talks, "query %q", q)
		}
	})

	t.Run("ListTalks by speaker", func(t *testing.T) {
		talks, err := repo.ListTalks(ctx, talkonpaper.ListTalksParams{SpeakerID: &speaker.ID})
		require.NoError(t, err)
		assert.Len(t, talks, 2)
	})

	t.Run("UpdateTalk", func(t *testing.T) {
		got, err := repo.GetTalk(ctx, second.ID)
		require.NoError(t, err)
		got.AccessLevel = "academic_premium"
		got.UpdatedAt = base.Add(4 * time.Hour)
		require.NoError(t, repo.UpdateTalk(ctx, got))

		reloaded, err := repo.GetTalk(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "academic_premium", reloaded.AccessLevel)

		missing := NewTalk("Missing", soil, speaker, "public", 0)
		assert.ErrorIs(t, repo.UpdateTalk(ctx, missing), talkonpaper.ErrTalkNotFound)
	})
}

func testPapers(t *testing.T, repo talkonpaper.Repository) {
	ctx := context.Background()

	older := NewPaper("10.1234/older", 2021, 0)
	newer := NewPaper("https://example.org/newer", 2024, time.Minute)
	recent := NewPaper("10.1234/recent", 2022, 2*time.Minute)
	for _, p := range []*talkonpaper.Paper{older, newer, recent} {
		require.NoError(t, repo.CreatePaper(ctx, p))
	}

	t.Run("GetPaper", func(t *testing.T) {
		got, err := repo.GetPaper(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, newer.DOIOrURL, got.DOIOrURL)
		assert.Equal(t, 2024, got.PublicationYear)
		assert.Equal(t, newer.PDFObjectKey, got.PDFObjectKey)

		_, err = repo.GetPaper(ctx, uuid.New())
		assert.ErrorIs(t, err, talkonpaper.ErrPaperNotFound)
	})

	t.Run("GetPaperByReference", func(t *testing.T) {
		got, err := repo.GetPaperByReference(ctx, "10.1234/older")
		require.NoError(t, err)
		assert.Equal(t, older.ID, got.ID)

		_, err = repo.GetPaperByReference(ctx, "10.9999/none")
		assert.ErrorIs(t, err, talkonpaper.ErrPaperNotFound)
	})

	t.Run("duplicate reference", func(t *testing.T) {
		dup := NewPaper("10.1234/older", 2020, 3*time.Minute)
		assert.ErrorIs(t, repo.CreatePaper(ctx, dup), talkonpaper.ErrDuplicatePaper)
	})

	t.Run("ListPapers by year", func(t *testing.T) {
		papers, err := repo.ListPapers(ctx, talkonpaper.ListPapersParams{})
		require.NoError(t, err)
		require.Len(t, papers, 3)
		assert.Equal(t, []int{2024, 2022, 2021}, []int{
			papers[0].PublicationYear, papers[1].PublicationYear, papers[2].PublicationYear,
		})
	})

	t.Run("ListPapers year filter", func(t *testing.T) {
		papers, err := repo.ListPapers(ctx, talkonpaper.ListPapersParams{Year: 2022})
		require.NoError(t, err)
		require.Len(t, papers, 1)
		assert.Equal(t, recent.ID, papers[0].ID)
	})

	t.Run("ListPapers by creation", func(t *testing.T) {
		papers, err := repo.ListPapers(ctx, talkonpaper.ListPapersParams{ByCreated: true, Limit: 2})
		require.NoError(t, err)
		require.Len(t, papers, 2)
		assert.Equal(t, recent.ID, papers[0].ID)
		assert.Equal(t, newer.ID, papers[1].ID)
	})
}

func testSpeakers(t *testing.T, repo talkonpaper.Repository) {
	ctx := context.Background()

	zed := NewSpeaker("Zed Okafor", 0)
	amina := NewSpeaker("Dr. Amina Patel", time.Minute)
	require.NoError(t, repo.CreateSpeaker(ctx, zed))
	require.NoError(t, repo.CreateSpeaker(ctx, amina))

	t.Run("GetSpeaker", func(t *testing.T) {
		got, err := repo.GetSpeaker(ctx, amina.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dr. Amina Patel", got.FullName)
		assert.Equal(t, "South Africa", got.Country)

		_, err = repo.GetSpeaker(ctx, uuid.New())
		assert.ErrorIs(t, err, talkonpaper.ErrSpeakerNotFound)
	})

	t.Run("GetSpeakerByName", func(t *testing.T) {
		got, err := repo.GetSpeakerByName(ctx, "Zed Okafor")
		require.NoError(t, err)
		assert.Equal(t, zed.ID, got.ID)

		_, err = repo.GetSpeakerByName(ctx, "Nobody")
		assert.ErrorIs(t, err, talkonpaper.ErrSpeakerNotFound)
	})

	t.Run("ListSpeakers by name", func(t *testing.T) {
		speakers, err := repo.ListSpeakers(ctx)
		require.NoError(t, err)
		require.Len(t, speakers, 2)
		assert.Equal(t, amina.ID, speakers[0].ID)
		assert.Equal(t, zed.ID, speakers[1].ID)
	})
}

func testUsers(t *testing.T, repo talkonpaper.Repository) {
	ctx := context.Background()

	user := &talkonpaper.User{
		ID:                uuid.New(),
		Email:             "reader@example.org",
		PasswordHash:      "hash",
		Role:              talkonpaper.RoleViewer,
		SubscriptionLevel: "public",
		IsActive:          true,
		CreatedAt:         base,
		UpdatedAt:         base,
	}
	require.NoError(t, repo.CreateUser(ctx, user))

	t.Run("GetUser", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.Equal(t, talkonpaper.RoleViewer, got.Role)
		assert.True(t, got.IsActive)

		_, err = repo.GetUser(ctx, uuid.New())
		assert.ErrorIs(t, err, talkonpaper.ErrUserNotFound)
	})

	t.Run("GetUserByEmail", func(t *testing.T) {
		got, err := repo.GetUserByEmail(ctx, "reader@example.org")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		_, err = repo.GetUserByEmail(ctx, "nobody@example.org")
		assert.ErrorIs(t, err, talkonpaper.ErrUserNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := *user
		dup.ID = uuid.New()
		assert.ErrorIs(t, repo.CreateUser(ctx, &dup), talkonpaper.ErrDuplicateEmail)
	})

	t.Run("UpdateUser", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.ID)
		require.NoError(t, err)
		got.SubscriptionLevel = "academic_premium"
		got.IsActive = false
		require.NoError(t, repo.UpdateUser(ctx, got))

		reloaded, err := repo.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "academic_premium", reloaded.SubscriptionLevel)
		assert.False(t, reloaded.IsActive)

		missing := *user
		missing.ID = uuid.New()
		assert.ErrorIs(t, repo.UpdateUser(ctx, &missing), talkonpaper.ErrUserNotFound)
	})
}

func testCount(t *testing.T, repo talkonpaper.Repository) {
	ctx := context.Background()

	counts, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, talkonpaper.Counts{}, *counts)

	speaker := NewSpeaker("Dr. Amina Patel", 0)
	paper := NewPaper("10.1234/count", 2025, 0)
	require.NoError(t, repo.CreateSpeaker(ctx, speaker))
	require.NoError(t, repo.CreatePaper(ctx, paper))
	require.NoError(t, repo.CreateTalk(ctx, NewTalk("Counted", paper, speaker, "public", 0)))

	counts, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Talks)
	assert.Equal(t, 1, counts.Papers)
	assert.Equal(t, 1, counts.Speakers)
	assert.Equal(t, 0, counts.Users)
}
