package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	"github.com/tendant/talkonpaper/pkg/talkonpaper/repo/repotest"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) talkonpaper.Repository {
		return newTestRepository(t)
	})
}

func TestSQLiteRepository_InMemory(t *testing.T) {
	repo, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer repo.Close()

	speaker := repotest.NewSpeaker("Dr. Amina Patel", 0)
	require.NoError(t, repo.CreateSpeaker(context.Background(), speaker))

	speakers, err := repo.ListSpeakers(context.Background())
	require.NoError(t, err)
	assert.Len(t, speakers, 1)
}

func TestSQLiteRepository_MigrateIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, repo.Migrate(context.Background()))
}

func TestSQLiteRepository_ForeignKeys(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	speaker := repotest.NewSpeaker("Dr. Amina Patel", 0)
	paper := repotest.NewPaper("10.1234/orphan", 2025, 0)

	err := repo.CreateTalk(ctx, repotest.NewTalk("Orphan", paper, speaker, "public", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "referenced record not found")
}

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestSQLiteRepository_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate email", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"))

		err := repo.CreateUser(ctx, &talkonpaper.User{ID: uuid.New(), Email: "a@example.org"})
		assert.ErrorIs(t, err, talkonpaper.ErrDuplicateEmail)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate paper", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO papers")).
			WillReturnError(errors.New("UNIQUE constraint failed: papers.doi_or_url"))

		err := repo.CreatePaper(ctx, repotest.NewPaper("10.1234/x", 2025, 0))
		assert.ErrorIs(t, err, talkonpaper.ErrDuplicatePaper)
	})

	t.Run("missing table", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM talks WHERE id = ?")).
			WillReturnError(errors.New("SQL logic error: no such table: talks (1)"))

		_, err := repo.GetTalk(ctx, uuid.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migration required")
	})

	t.Run("no rows", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
			WithArgs("nobody@example.org").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetUserByEmail(ctx, "nobody@example.org")
		assert.ErrorIs(t, err, talkonpaper.ErrUserNotFound)
	})

	t.Run("connection failure is wrapped", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		cause := errors.New("disk I/O error")
		mock.ExpectQuery(regexp.QuoteMeta("FROM speakers ORDER BY full_name")).WillReturnError(cause)

		_, err := repo.ListSpeakers(ctx)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "list speakers")
	})

	t.Run("update missing user", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateUser(ctx, &talkonpaper.User{ID: uuid.New(), Email: "a@example.org"})
		assert.ErrorIs(t, err, talkonpaper.ErrUserNotFound)
	})
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "water", escapeLike("water"))
	assert.Equal(t, `100\% \_done\\`, escapeLike(`100% _done\`))
}
