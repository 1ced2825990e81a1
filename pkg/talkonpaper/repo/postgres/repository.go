package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements talkonpaper.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

var _ talkonpaper.Repository = (*Repository)(nil)

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates missing tables and indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Schema is the DDL for the catalog tables.
const Schema = `
CREATE TABLE IF NOT EXISTS speakers (
	id                 UUID PRIMARY KEY,
	full_name          TEXT NOT NULL,
	affiliation        TEXT NOT NULL,
	country            TEXT NOT NULL DEFAULT '',
	bio_short          TEXT NOT NULL DEFAULT '',
	website_or_profile TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_speakers_name ON speakers(full_name);

CREATE TABLE IF NOT EXISTS papers (
	id                   UUID PRIMARY KEY,
	title                TEXT NOT NULL,
	abstract             TEXT NOT NULL,
	authors              TEXT NOT NULL,
	doi_or_url           TEXT NOT NULL,
	journal_or_publisher TEXT NOT NULL DEFAULT '',
	publication_year     INTEGER NOT NULL,
	language_original    TEXT NOT NULL DEFAULT 'en',
	keywords             TEXT NOT NULL DEFAULT '',
	pdf_object_key       TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	CONSTRAINT papers_doi_or_url_key UNIQUE (doi_or_url)
);
CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(publication_year DESC);

CREATE TABLE IF NOT EXISTS users (
	id                 UUID PRIMARY KEY,
	email              TEXT NOT NULL,
	password_hash      TEXT NOT NULL,
	role               TEXT NOT NULL DEFAULT 'viewer',
	subscription_level TEXT NOT NULL DEFAULT 'public',
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	CONSTRAINT users_email_key UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS talks (
	id                   UUID PRIMARY KEY,
	paper_id             UUID NOT NULL REFERENCES papers(id),
	speaker_id           UUID NOT NULL REFERENCES speakers(id),
	speaker_user_id      UUID REFERENCES users(id),
	title                TEXT NOT NULL,
	summary              TEXT NOT NULL DEFAULT '',
	duration_seconds     INTEGER NOT NULL DEFAULT 0,
	talk_date            DATE,
	access_level         TEXT NOT NULL DEFAULT 'public',
	is_dubbed            BOOLEAN NOT NULL DEFAULT FALSE,
	video_object_key     TEXT NOT NULL DEFAULT '',
	preview_video_key    TEXT NOT NULL DEFAULT '',
	audio_object_key     TEXT NOT NULL DEFAULT '',
	thumbnail_object_key TEXT NOT NULL DEFAULT '',
	transcript_text      TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	CONSTRAINT talks_paper_id_key UNIQUE (paper_id)
);
CREATE INDEX IF NOT EXISTS idx_talks_created ON talks(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_talks_speaker ON talks(speaker_id);
`

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch pgErr.ConstraintName {
			case "users_email_key":
				return talkonpaper.ErrDuplicateEmail
			case "papers_doi_or_url_key":
				return talkonpaper.ErrDuplicatePaper
			case "talks_paper_id_key":
				return talkonpaper.ErrTalkExists
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			if strings.Contains(pgErr.ConstraintName, "paper") {
				return talkonpaper.ErrPaperNotFound
			}
			if strings.Contains(pgErr.ConstraintName, "speaker_id") {
				return talkonpaper.ErrSpeakerNotFound
			}
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Talk operations

const talkColumns = `id, paper_id, speaker_id, speaker_user_id, title, summary,
	duration_seconds, talk_date, access_level, is_dubbed, video_object_key,
	preview_video_key, audio_object_key, thumbnail_object_key, transcript_text,
	created_at, updated_at`

func (r *Repository) CreateTalk(ctx context.Context, talk *talkonpaper.Talk) error {
	query := `
		INSERT INTO talks (` + talkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.Exec(ctx, query,
		talk.ID, talk.PaperID, talk.SpeakerID, talk.SpeakerUserID, talk.Title, talk.Summary,
		talk.DurationSeconds, talk.TalkDate, talk.AccessLevel, talk.IsDubbed, talk.VideoObjectKey,
		talk.PreviewVideoKey, talk.AudioObjectKey, talk.ThumbnailObjectKey, talk.TranscriptText,
		talk.CreatedAt, talk.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create talk", err)
	}
	return nil
}

func (r *Repository) GetTalk(ctx context.Context, id uuid.UUID) (*talkonpaper.Talk, error) {
	talk, err := scanTalk(r.db.QueryRow(ctx, `SELECT `+talkColumns+` FROM talks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, talkonpaper.ErrTalkNotFound
	} else if err != nil {
		return nil, r.handlePostgresError("get talk", err)
	}
	return talk, nil
}

func (r *Repository) GetTalkByPaperID(ctx context.Context, paperID uuid.UUID) (*talkonpaper.Talk, error) {
	talk, err := scanTalk(r.db.QueryRow(ctx, `SELECT `+talkColumns+` FROM talks WHERE paper_id = $1`, paperID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, talkonpaper.ErrTalkNotFound
	} else if err != nil {
		return nil, r.handlePostgresError("get talk by paper", err)
	}
	return talk, nil
}

func (r *Repository) ListTalks(ctx context.Context, params talkonpaper.ListTalksParams) ([]*talkonpaper.Talk, error) {
	query := `SELECT ` + talkColumns + ` FROM talks WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if params.Query != "" {
		query += fmt.Sprintf(` AND title ILIKE '%%' || $%d || '%%' ESCAPE '\'`, argIndex)
		args = append(args, escapeLike(params.Query))
		argIndex++
	}
	if params.SpeakerID != nil {
		query += fmt.Sprintf(" AND speaker_id = $%d", argIndex)
		args = append(args, *params.SpeakerID)
		argIndex++
	}
	query += " ORDER BY created_at DESC"
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, params.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list talks", err)
	}
	defer rows.Close()

	var talks []*talkonpaper.Talk
	for rows.Next() {
		talk, err := scanTalk(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan talk", err)
		}
		talks = append(talks, talk)
	}
	return talks, rows.Err()
}

func (r *Repository) UpdateTalk(ctx context.Context, talk *talkonpaper.Talk) error {
	query := `
		UPDATE talks SET
			paper_id = $2, speaker_id = $3, speaker_user_id = $4, title = $5, summary = $6,
			duration_seconds = $7, talk_date = $8, access_level = $9, is_dubbed = $10,
			video_object_key = $11, preview_video_key = $12, audio_object_key = $13,
			thumbnail_object_key = $14, transcript_text = $15, updated_at = $16
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		talk.ID, talk.PaperID, talk.SpeakerID, talk.SpeakerUserID, talk.Title, talk.Summary,
		talk.DurationSeconds, talk.TalkDate, talk.AccessLevel, talk.IsDubbed,
		talk.VideoObjectKey, talk.PreviewVideoKey, talk.AudioObjectKey,
		talk.ThumbnailObjectKey, talk.TranscriptText, talk.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update talk", err)
	}
	if tag.RowsAffected() == 0 {
		return talkonpaper.ErrTalkNotFound
	}
	return nil
}

func scanTalk(row pgx.Row) (*talkonpaper.Talk, error) {
	var talk talkonpaper.Talk
	err := row.Scan(&talk.ID, &talk.PaperID, &talk.SpeakerID, &talk.SpeakerUserID, &talk.Title,
		&talk.Summary, &talk.DurationSeconds, &talk.TalkDate, &talk.AccessLevel, &talk.IsDubbed,
		&talk.VideoObjectKey, &talk.PreviewVideoKey, &talk.AudioObjectKey, &talk.ThumbnailObjectKey,
		&talk.TranscriptText, &talk.CreatedAt, &talk.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &talk, nil
}

// Paper operations

const paperColumns = `id, title, abstract, authors, doi_or_url, journal_or_publisher,
	publication_year, language_original, keywords, pdf_object_key, created_at, updated_at`

func (r *Repository) CreatePaper(ctx context.Context, paper *talkonpaper.Paper) error {
	query := `
		INSERT INTO papers (` + paperColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		paper.ID, paper.Title, paper.Abstract, paper.Authors, paper.DOIOrURL,
		paper.JournalOrPublisher, paper.PublicationYear, paper.LanguageOriginal,
		paper.Keywords, paper.PDFObjectKey, paper.CreatedAt, paper.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create paper", err)
	}
	return nil
}

func (r *Repository) GetPaper(ctx context.Context, id uuid.UUID) (*talkonpaper.Paper, error) {
	paper, err := scanPaper(r.db.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, talkonpaper.ErrPaperNotFound
	} else if err != nil {
		return nil, r.handlePostgresError("get paper", err)
	}
	return paper, nil
}

func (r *Repository) GetPaperByReference(ctx context.Context, doiOrURL string) (*talkonpaper.Paper, error) {
	paper, err := scanPaper(r.db.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers WHERE doi_or_url = $1`, doiOrURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, talkonpaper.ErrPaperNotFound
	} else if err != nil {
		return nil, r.handlePostgresError("get paper by reference", err)
	}
	return paper, nil
}

func (r *Repository) ListPapers(ctx context.Context, params talkonpaper.ListPapersParams) ([]*talkonpaper.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if params.Year != 0 {
		query += fmt.Sprintf(" AND publication_year = $%d", argIndex)
		args = append(args, params.Year)
		argIndex++
	}
	if params.ByCreated {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY publication_year DESC, created_at DESC"
	}
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, params.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list papers", err)
	}
	defer rows.Close()

	var papers []*talkonpaper.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan paper", err)
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

func scanPaper(row pgx.Row) (*talkonpaper.Paper, error) {
	var paper talkonpaper.Paper
	err := row.Scan(&paper.ID, &paper.Title, &paper.Abstract, &paper.Authors, &paper.DOIOrURL,
		&paper.JournalOrPublisher, &paper.PublicationYear, &paper.LanguageOriginal,
		&paper.Keywords, &paper.PDFObjectKey, &paper.CreatedAt, &paper.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &paper, nil
}

// Speaker operations

const speakerColumns = `id, full_name, affiliation, country, bio_short, website_or_profile, created_at, updated_at`

func (r *Repository) CreateSpeaker(ctx context.Context, speaker *talkonpaper.Speaker) error {
	query := `
		INSERT INTO speakers (` + speakerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		speaker.ID, speaker.FullName, speaker.Affiliation, speaker.Country,
		speaker.BioShort, speaker.WebsiteOrProfile, speaker.CreatedAt, speaker.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create speaker", err)
	}
	return nil
}

func (r *Repository) GetSpeaker(ctx context.Context, id uuid.UUID) (*talkonpaper.Speaker, error) {
	speaker, err := scanSpeaker(r.db.QueryRow(ctx, `SELECT `+speakerColumns+` FROM speakers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, talkonpaper.ErrSpeakerNotFound
	} else if err != nil {
		return nil, r.handlePostgresError("get speaker", err)
	}
	return speaker, nil
}

func (r *Repository) GetSpeakerByName(ctx context.Context, fullName string) (*talkonpaper.Speaker, error) {
	query := `SELECT ` + speakerColumns + ` FROM speakers WHERE full_name = $1 ORDER BY created_at ASC LIMIT 1`
	speaker, err := scanSpeaker(r.db.QueryRow(ctx, query, fullName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, talkonpaper.ErrSpeakerNotFound
	} else if err != nil {
		return nil, r.handlePostgresError("get speaker by name", err)
	}
	return speaker, nil
}

func (r *Repository) ListSpeakers(ctx context.Context) ([]*talkonpaper.Speaker, error) {
	rows, err := r.db.Query(ctx, `SELECT `+speakerColumns+` FROM speakers ORDER BY full_name ASC`)
	if err != nil {
		return nil, r.handlePostgresError("list speakers", err)
	}
	defer rows.Close()

	var speakers []*talkonpaper.Speaker
	for rows.Next() {
		speaker, err := scanSpeaker(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan speaker", err)
		}
		speakers = append(speakers, speaker)
	}
	return speakers, rows.Err()
}

func scanSpeaker(row pgx.Row) (*talkonpaper.Speaker, error) {
	var speaker talkonpaper.Speaker
	err := row.Scan(&speaker.ID, &speaker.FullName, &speaker.Affiliation, &speaker.Country,
		&speaker.BioShort, &speaker.WebsiteOrProfile, &speaker.CreatedAt, &speaker.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &speaker, nil
}

// User operations

const userColumns = `id, email, password_hash, role, subscription_level, is_active, created_at, updated_at`

func (r *Repository) CreateUser(ctx context.Context, user *talkonpaper.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, string(user.Role), user.SubscriptionLevel,
		user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*talkonpaper.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, talkonpaper.ErrUserNotFound
	} else if err != nil {
		return nil, r.handlePostgresError("get user", err)
	}
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*talkonpaper.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, talkonpaper.ErrUserNotFound
	} else if err != nil {
		return nil, r.handlePostgresError("get user by email", err)
	}
	return user, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *talkonpaper.User) error {
	query := `
		UPDATE users SET
			email = $2, password_hash = $3, role = $4, subscription_level = $5,
			is_active = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, string(user.Role), user.SubscriptionLevel,
		user.IsActive, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return talkonpaper.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*talkonpaper.User, error) {
	var (
		user talkonpaper.User
		role string
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &role, &user.SubscriptionLevel,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = talkonpaper.Role(role)
	return &user, nil
}

// Count returns catalog totals
func (r *Repository) Count(ctx context.Context) (*talkonpaper.Counts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM talks),
			(SELECT COUNT(*) FROM papers),
			(SELECT COUNT(*) FROM speakers),
			(SELECT COUNT(*) FROM users)`

	var talks, papers, speakers, users int64
	if err := r.db.QueryRow(ctx, query).Scan(&talks, &papers, &speakers, &users); err != nil {
		return nil, r.handlePostgresError("count", err)
	}
	return &talkonpaper.Counts{
		Talks:    int(talks),
		Papers:   int(papers),
		Speakers: int(speakers),
		Users:    int(users),
	}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern escaped with '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
