// Package blog loads markdown posts with YAML frontmatter from a directory
// and serves them through an injectable cache.
package blog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAuthor = "TalkOnPaper Team"
	dateLayout    = "2006-01-02"
)

var ErrPostNotFound = errors.New("blog post not found")

// Post is a rendered blog entry. Slug is the file name without extension.
type Post struct {
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Date       time.Time `json:"date"`
	Author     string    `json:"author"`
	Summary    string    `json:"summary"`
	Tags       []string  `json:"tags"`
	Content    string    `json:"content"`
	RawContent string    `json:"raw_content,omitempty"`
}

// HasTag reports whether the post carries tag.
func (p Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type frontmatter struct {
	Title   string   `yaml:"title"`
	Date    any      `yaml:"date"`
	Author  string   `yaml:"author"`
	Summary string   `yaml:"summary"`
	Tags    []string `yaml:"tags"`
}

// Loader reads posts from Dir on cache miss.
type Loader struct {
	dir      string
	cache    Cache
	logger   *slog.Logger
	now      func() time.Time
	observe  func(hit bool)
	markdown goldmark.Markdown
}

type Option func(*Loader)

// WithCache replaces the default five minute MemoryCache.
func WithCache(c Cache) Option {
	return func(l *Loader) {
		if c != nil {
			l.cache = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock sets the time used for posts whose date cannot be parsed.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// WithCacheObserver is called with the result of every cache lookup.
func WithCacheObserver(fn func(hit bool)) Option {
	return func(l *Loader) {
		l.observe = fn
	}
}

func New(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:    dir,
		logger: slog.Default(),
		now:    time.Now,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cache == nil {
		l.cache = NewMemoryCache(DefaultTTL)
	}
	return l
}

// Posts returns every post, newest first.
func (l *Loader) Posts(ctx context.Context) ([]Post, error) {
	posts, ok, err := l.cache.Get(ctx)
	if err != nil {
		l.logger.Warn("blog cache read failed", "err", err)
	}
	if l.observe != nil {
		l.observe(ok)
	}
	if ok {
		return posts, nil
	}
	return l.Reload(ctx)
}

// Tagged returns the posts carrying tag. An empty tag returns all posts.
func (l *Loader) Tagged(ctx context.Context, tag string) ([]Post, error) {
	posts, err := l.Posts(ctx)
	if err != nil || tag == "" {
		return posts, err
	}
	var out []Post
	for _, p := range posts {
		if p.HasTag(tag) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *Loader) Post(ctx context.Context, slug string) (*Post, error) {
	posts, err := l.Posts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].Slug == slug {
			p := posts[i]
			return &p, nil
		}
	}
	return nil, ErrPostNotFound
}

// Related returns up to n other posts that share at least one tag with slug.
func (l *Loader) Related(ctx context.Context, slug string, n int) ([]Post, error) {
	post, err := l.Post(ctx, slug)
	if err != nil {
		return nil, err
	}
	if len(post.Tags) == 0 || n <= 0 {
		return nil, nil
	}
	posts, err := l.Posts(ctx)
	if err != nil {
		return nil, err
	}
	var related []Post
	for _, p := range posts {
		if p.Slug == slug {
			continue
		}
		for _, tag := range post.Tags {
			if p.HasTag(tag) {
				related = append(related, p)
				break
			}
		}
		if len(related) >= n {
			break
		}
	}
	return related, nil
}

// Tags returns the sorted set of tags across all posts.
func (l *Loader) Tags(ctx context.Context) ([]string, error) {
	posts, err := l.Posts(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, p := range posts {
		for _, t := range p.Tags {
			seen[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

// Reload reads the directory regardless of cache state and refreshes the cache.
func (l *Loader) Reload(ctx context.Context) ([]Post, error) {
	posts, err := l.load()
	if err != nil {
		return nil, err
	}
	if err := l.cache.Set(ctx, posts); err != nil {
		l.logger.Warn("blog cache write failed", "err", err)
	}
	return posts, nil
}

func (l *Loader) load() ([]Post, error) {
	if _, err := os.Stat(l.dir); errors.Is(err, os.ErrNotExist) {
		return []Post{}, nil
	}
	files, err := filepath.Glob(filepath.Join(l.dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}

	posts := make([]Post, 0, len(files))
	for _, path := range files {
		post, err := l.parseFile(path)
		if err != nil {
			l.logger.Error("failed to load blog post", "path", path, "err", err)
			continue
		}
		posts = append(posts, *post)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Slug < posts[j].Slug
		}
		return posts[i].Date.After(posts[j].Date)
	})
	return posts, nil
}

func (l *Loader) parseFile(path string) (*Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	var fm frontmatter
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return nil, fmt.Errorf("parse frontmatter: %w", err)
		}
	}

	var rendered bytes.Buffer
	if err := l.markdown.Convert(body, &rendered); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	slug := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	post := &Post{
		Slug:       slug,
		Title:      fm.Title,
		Date:       l.parseDate(fm.Date),
		Author:     fm.Author,
		Summary:    fm.Summary,
		Tags:       fm.Tags,
		Content:    rendered.String(),
		RawContent: string(body),
	}
	if post.Title == "" {
		post.Title = slug
	}
	if post.Author == "" {
		post.Author = DefaultAuthor
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	return post, nil
}

func (l *Loader) parseDate(v any) time.Time {
	switch d := v.(type) {
	case time.Time:
		return d
	case string:
		if t, err := time.Parse(dateLayout, strings.TrimSpace(d)); err == nil {
			return t
		}
	}
	return l.now()
}

// splitFrontmatter separates a leading "---" delimited YAML block from the
// markdown body. Files without one are all body.
func splitFrontmatter(data []byte) (meta, body []byte, err error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, normalized, nil
	}
	rest := normalized[len("---\n"):]
	if bytes.HasPrefix(rest, []byte("---\n")) {
		return nil, rest[len("---\n"):], nil
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("\n---")], nil, nil
		}
		return nil, nil, errors.New("unterminated frontmatter")
	}
	return rest[:end], rest[end+len("\n---\n"):], nil
}
