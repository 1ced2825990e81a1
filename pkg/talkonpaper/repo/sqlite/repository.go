// Package sqlite stores the catalog in a single SQLite file. It suits local
// development and small single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so that they sort lexically.
const (
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout = "2006-01-02"
)

// Repository implements talkonpaper.Repository using SQLite
type Repository struct {
	db *sql.DB
}

var _ talkonpaper.Repository = (*Repository)(nil)

// New wraps an open database handle. The schema must already exist; see
// Migrate.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Repository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	r := New(db)
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Migrate creates missing tables and indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS speakers (
	id                 TEXT PRIMARY KEY,
	full_name          TEXT NOT NULL,
	affiliation        TEXT NOT NULL,
	country            TEXT NOT NULL DEFAULT '',
	bio_short          TEXT NOT NULL DEFAULT '',
	website_or_profile TEXT NOT NULL DEFAULT '',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_speakers_name ON speakers(full_name);

CREATE TABLE IF NOT EXISTS papers (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL,
	abstract             TEXT NOT NULL,
	authors              TEXT NOT NULL,
	doi_or_url           TEXT NOT NULL UNIQUE,
	journal_or_publisher TEXT NOT NULL DEFAULT '',
	publication_year     INTEGER NOT NULL,
	language_original    TEXT NOT NULL DEFAULT 'en',
	keywords             TEXT NOT NULL DEFAULT '',
	pdf_object_key       TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(publication_year DESC);

CREATE TABLE IF NOT EXISTS users (
	id                 TEXT PRIMARY KEY,
	email              TEXT NOT NULL UNIQUE,
	password_hash      TEXT NOT NULL,
	role               TEXT NOT NULL DEFAULT 'viewer',
	subscription_level TEXT NOT NULL DEFAULT 'public',
	is_active          INTEGER NOT NULL DEFAULT 1,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS talks (
	id                   TEXT PRIMARY KEY,
	paper_id             TEXT NOT NULL UNIQUE REFERENCES papers(id),
	speaker_id           TEXT NOT NULL REFERENCES speakers(id),
	speaker_user_id      TEXT REFERENCES users(id),
	title                TEXT NOT NULL,
	summary              TEXT NOT NULL DEFAULT '',
	duration_seconds     INTEGER NOT NULL DEFAULT 0,
	talk_date            TEXT,
	access_level         TEXT NOT NULL DEFAULT 'public',
	is_dubbed            INTEGER NOT NULL DEFAULT 0,
	video_object_key     TEXT NOT NULL DEFAULT '',
	preview_video_key    TEXT NOT NULL DEFAULT '',
	audio_object_key     TEXT NOT NULL DEFAULT '',
	thumbnail_object_key TEXT NOT NULL DEFAULT '',
	transcript_text      TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_talks_created ON talks(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_talks_speaker ON talks(speaker_id);
`

// handleSQLiteError maps driver errors onto catalog errors. The driver only
// reports constraint names through the message text.
func handleSQLiteError(operation string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: users.email"):
		return talkonpaper.ErrDuplicateEmail
	case strings.Contains(msg, "UNIQUE constraint failed: papers.doi_or_url"):
		return talkonpaper.ErrDuplicatePaper
	case strings.Contains(msg, "UNIQUE constraint failed: talks.paper_id"):
		return talkonpaper.ErrTalkExists
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("duplicate entry in %s", operation)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("referenced record not found in %s", operation)
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("table does not exist - database migration required")
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Talk operations

const talkColumns = `id, paper_id, speaker_id, speaker_user_id, title, summary,
	duration_seconds, talk_date, access_level, is_dubbed, video_object_key,
	preview_video_key, audio_object_key, thumbnail_object_key, transcript_text,
	created_at, updated_at`

func (r *Repository) CreateTalk(ctx context.Context, talk *talkonpaper.Talk) error {
	query := `INSERT INTO talks (` + talkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		talk.ID.String(), talk.PaperID.String(), talk.SpeakerID.String(), nullUUID(talk.SpeakerUserID),
		talk.Title, talk.Summary, talk.DurationSeconds, nullDate(talk.TalkDate), talk.AccessLevel,
		talk.IsDubbed, talk.VideoObjectKey, talk.PreviewVideoKey, talk.AudioObjectKey,
		talk.ThumbnailObjectKey, talk.TranscriptText, formatTime(talk.CreatedAt), formatTime(talk.UpdatedAt))
	if err != nil {
		return handleSQLiteError("create talk", err)
	}
	return nil
}

func (r *Repository) GetTalk(ctx context.Context, id uuid.UUID) (*talkonpaper.Talk, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+talkColumns+` FROM talks WHERE id = ?`, id.String())
	talk, err := scanTalk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, talkonpaper.ErrTalkNotFound
	} else if err != nil {
		return nil, handleSQLiteError("get talk", err)
	}
	return talk, nil
}

func (r *Repository) GetTalkByPaperID(ctx context.Context, paperID uuid.UUID) (*talkonpaper.Talk, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+talkColumns+` FROM talks WHERE paper_id = ?`, paperID.String())
	talk, err := scanTalk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, talkonpaper.ErrTalkNotFound
	} else if err != nil {
		return nil, handleSQLiteError("get talk by paper", err)
	}
	return talk, nil
}

func (r *Repository) ListTalks(ctx context.Context, params talkonpaper.ListTalksParams) ([]*talkonpaper.Talk, error) {
	query := `SELECT ` + talkColumns + ` FROM talks WHERE 1=1`
	var args []any

	if params.Query != "" {
		query += ` AND LOWER(title) LIKE '%' || LOWER(?) || '%' ESCAPE '\'`
		args = append(args, escapeLike(params.Query))
	}
	if params.SpeakerID != nil {
		query += ` AND speaker_id = ?`
		args = append(args, params.SpeakerID.String())
	}
	query += ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, params.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, handleSQLiteError("list talks", err)
	}
	defer rows.Close()

	var talks []*talkonpaper.Talk
	for rows.Next() {
		talk, err := scanTalk(rows)
		if err != nil {
			return nil, handleSQLiteError("scan talk", err)
		}
		talks = append(talks, talk)
	}
	return talks, rows.Err()
}

func (r *Repository) UpdateTalk(ctx context.Context, talk *talkonpaper.Talk) error {
	query := `UPDATE talks SET
		paper_id = ?, speaker_id = ?, speaker_user_id = ?, title = ?, summary = ?,
		duration_seconds = ?, talk_date = ?, access_level = ?, is_dubbed = ?,
		video_object_key = ?, preview_video_key = ?, audio_object_key = ?,
		thumbnail_object_key = ?, transcript_text = ?, updated_at = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		talk.PaperID.String(), talk.SpeakerID.String(), nullUUID(talk.SpeakerUserID), talk.Title, talk.Summary,
		talk.DurationSeconds, nullDate(talk.TalkDate), talk.AccessLevel, talk.IsDubbed,
		talk.VideoObjectKey, talk.PreviewVideoKey, talk.AudioObjectKey,
		talk.ThumbnailObjectKey, talk.TranscriptText, formatTime(talk.UpdatedAt), talk.ID.String())
	if err != nil {
		return handleSQLiteError("update talk", err)
	}
	return requireAffected(res, talkonpaper.ErrTalkNotFound)
}

func scanTalk(row rowScanner) (*talkonpaper.Talk, error) {
	var (
		talk                    talkonpaper.Talk
		id, paperID, speakerID  string
		speakerUserID, talkDate sql.NullString
		createdAt, updatedAt    string
	)
	err := row.Scan(&id, &paperID, &speakerID, &speakerUserID, &talk.Title, &talk.Summary,
		&talk.DurationSeconds, &talkDate, &talk.AccessLevel, &talk.IsDubbed, &talk.VideoObjectKey,
		&talk.PreviewVideoKey, &talk.AudioObjectKey, &talk.ThumbnailObjectKey, &talk.TranscriptText,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if talk.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if talk.PaperID, err = uuid.Parse(paperID); err != nil {
		return nil, err
	}
	if talk.SpeakerID, err = uuid.Parse(speakerID); err != nil {
		return nil, err
	}
	if speakerUserID.Valid {
		uid, err := uuid.Parse(speakerUserID.String)
		if err != nil {
			return nil, err
		}
		talk.SpeakerUserID = &uid
	}
	if talkDate.Valid {
		d, err := time.Parse(dateLayout, talkDate.String)
		if err != nil {
			return nil, err
		}
		talk.TalkDate = &d
	}
	if talk.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if talk.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &talk, nil
}

// Paper operations

const paperColumns = `id, title, abstract, authors, doi_or_url, journal_or_publisher,
	publication_year, language_original, keywords, pdf_object_key, created_at, updated_at`

func (r *Repository) CreatePaper(ctx context.Context, paper *talkonpaper.Paper) error {
	query := `INSERT INTO papers (` + paperColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		paper.ID.String(), paper.Title, paper.Abstract, paper.Authors, paper.DOIOrURL,
		paper.JournalOrPublisher, paper.PublicationYear, paper.LanguageOriginal, paper.Keywords,
		paper.PDFObjectKey, formatTime(paper.CreatedAt), formatTime(paper.UpdatedAt))
	if err != nil {
		return handleSQLiteError("create paper", err)
	}
	return nil
}

func (r *Repository) GetPaper(ctx context.Context, id uuid.UUID) (*talkonpaper.Paper, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id.String())
	paper, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, talkonpaper.ErrPaperNotFound
	} else if err != nil {
		return nil, handleSQLiteError("get paper", err)
	}
	return paper, nil
}

func (r *Repository) GetPaperByReference(ctx context.Context, doiOrURL string) (*talkonpaper.Paper, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE doi_or_url = ?`, doiOrURL)
	paper, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, talkonpaper.ErrPaperNotFound
	} else if err != nil {
		return nil, handleSQLiteError("get paper by reference", err)
	}
	return paper, nil
}

func (r *Repository) ListPapers(ctx context.Context, params talkonpaper.ListPapersParams) ([]*talkonpaper.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE 1=1`
	var args []any

	if params.Year != 0 {
		query += ` AND publication_year = ?`
		args = append(args, params.Year)
	}
	if params.ByCreated {
		query += ` ORDER BY created_at DESC`
	} else {
		query += ` ORDER BY publication_year DESC, created_at DESC`
	}
	if params.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, params.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, handleSQLiteError("list papers", err)
	}
	defer rows.Close()

	var papers []*talkonpaper.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, handleSQLiteError("scan paper", err)
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

func scanPaper(row rowScanner) (*talkonpaper.Paper, error) {
	var (
		paper                    talkonpaper.Paper
		id, createdAt, updatedAt string
	)
	err := row.Scan(&id, &paper.Title, &paper.Abstract, &paper.Authors, &paper.DOIOrURL,
		&paper.JournalOrPublisher, &paper.PublicationYear, &paper.LanguageOriginal, &paper.Keywords,
		&paper.PDFObjectKey, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if paper.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if paper.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if paper.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &paper, nil
}

// Speaker operations

const speakerColumns = `id, full_name, affiliation, country, bio_short, website_or_profile, created_at, updated_at`

func (r *Repository) CreateSpeaker(ctx context.Context, speaker *talkonpaper.Speaker) error {
	query := `INSERT INTO speakers (` + speakerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		speaker.ID.String(), speaker.FullName, speaker.Affiliation, speaker.Country,
		speaker.BioShort, speaker.WebsiteOrProfile, formatTime(speaker.CreatedAt), formatTime(speaker.UpdatedAt))
	if err != nil {
		return handleSQLiteError("create speaker", err)
	}
	return nil
}

func (r *Repository) GetSpeaker(ctx context.Context, id uuid.UUID) (*talkonpaper.Speaker, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+speakerColumns+` FROM speakers WHERE id = ?`, id.String())
	speaker, err := scanSpeaker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, talkonpaper.ErrSpeakerNotFound
	} else if err != nil {
		return nil, handleSQLiteError("get speaker", err)
	}
	return speaker, nil
}

func (r *Repository) GetSpeakerByName(ctx context.Context, fullName string) (*talkonpaper.Speaker, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+speakerColumns+` FROM speakers WHERE full_name = ? ORDER BY created_at ASC LIMIT 1`, fullName)
	speaker, err := scanSpeaker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, talkonpaper.ErrSpeakerNotFound
	} else if err != nil {
		return nil, handleSQLiteError("get speaker by name", err)
	}
	return speaker, nil
}

func (r *Repository) ListSpeakers(ctx context.Context) ([]*talkonpaper.Speaker, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+speakerColumns+` FROM speakers ORDER BY full_name ASC`)
	if err != nil {
		return nil, handleSQLiteError("list speakers", err)
	}
	defer rows.Close()

	var speakers []*talkonpaper.Speaker
	for rows.Next() {
		speaker, err := scanSpeaker(rows)
		if err != nil {
			return nil, handleSQLiteError("scan speaker", err)
		}
		speakers = append(speakers, speaker)
	}
	return speakers, rows.Err()
}

func scanSpeaker(row rowScanner) (*talkonpaper.Speaker, error) {
	var (
		speaker                  talkonpaper.Speaker
		id, createdAt, updatedAt string
	)
	err := row.Scan(&id, &speaker.FullName, &speaker.Affiliation, &speaker.Country,
		&speaker.BioShort, &speaker.WebsiteOrProfile, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if speaker.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if speaker.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if speaker.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &speaker, nil
}

// User operations

const userColumns = `id, email, password_hash, role, subscription_level, is_active, created_at, updated_at`

func (r *Repository) CreateUser(ctx context.Context, user *talkonpaper.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID.String(), user.Email, user.PasswordHash, string(user.Role), user.SubscriptionLevel,
		user.IsActive, formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	if err != nil {
		return handleSQLiteError("create user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*talkonpaper.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, talkonpaper.ErrUserNotFound
	} else if err != nil {
		return nil, handleSQLiteError("get user", err)
	}
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*talkonpaper.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, talkonpaper.ErrUserNotFound
	} else if err != nil {
		return nil, handleSQLiteError("get user by email", err)
	}
	return user, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *talkonpaper.User) error {
	query := `UPDATE users SET email = ?, password_hash = ?, role = ?, subscription_level = ?,
		is_active = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		user.Email, user.PasswordHash, string(user.Role), user.SubscriptionLevel,
		user.IsActive, formatTime(user.UpdatedAt), user.ID.String())
	if err != nil {
		return handleSQLiteError("update user", err)
	}
	return requireAffected(res, talkonpaper.ErrUserNotFound)
}

func scanUser(row rowScanner) (*talkonpaper.User, error) {
	var (
		user                 talkonpaper.User
		id, role             string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &user.Email, &user.PasswordHash, &role, &user.SubscriptionLevel,
		&user.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = talkonpaper.Role(role)
	if user.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

// Count returns catalog totals
func (r *Repository) Count(ctx context.Context) (*talkonpaper.Counts, error) {
	var counts talkonpaper.Counts
	err := r.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM talks),
		(SELECT COUNT(*) FROM papers),
		(SELECT COUNT(*) FROM speakers),
		(SELECT COUNT(*) FROM users)`).Scan(&counts.Talks, &counts.Papers, &counts.Speakers, &counts.Users)
	if err != nil {
		return nil, handleSQLiteError("count", err)
	}
	return &counts, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern escaped with '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
