package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
)

// Repository implements talkonpaper.Repository using in-memory storage
type Repository struct {
	mu          sync.RWMutex
	talks       map[uuid.UUID]*talkonpaper.Talk
	papers      map[uuid.UUID]*talkonpaper.Paper
	speakers    map[uuid.UUID]*talkonpaper.Speaker
	users       map[uuid.UUID]*talkonpaper.User
	talkByPaper map[uuid.UUID]uuid.UUID // paper_id -> talk_id
	paperByRef  map[string]uuid.UUID    // doi_or_url -> paper_id
	userByEmail map[string]uuid.UUID    // email -> user_id
}

// New creates a new in-memory repository
func New() talkonpaper.Repository {
	return &Repository{
		talks:       make(map[uuid.UUID]*talkonpaper.Talk),
		papers:      make(map[uuid.UUID]*talkonpaper.Paper),
		speakers:    make(map[uuid.UUID]*talkonpaper.Speaker),
		users:       make(map[uuid.UUID]*talkonpaper.User),
		talkByPaper: make(map[uuid.UUID]uuid.UUID),
		paperByRef:  make(map[string]uuid.UUID),
		userByEmail: make(map[string]uuid.UUID),
	}
}

// Talk operations

func (r *Repository) CreateTalk(ctx context.Context, talk *talkonpaper.Talk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.papers[talk.PaperID]; !exists {
		return talkonpaper.ErrPaperNotFound
	}
	if _, exists := r.speakers[talk.SpeakerID]; !exists {
		return talkonpaper.ErrSpeakerNotFound
	}
	if _, exists := r.talkByPaper[talk.PaperID]; exists {
		return talkonpaper.ErrTalkExists
	}

	// Create a copy to avoid external modifications
	talkCopy := *talk
	r.talks[talk.ID] = &talkCopy
	r.talkByPaper[talk.PaperID] = talk.ID

	return nil
}

func (r *Repository) GetTalk(ctx context.Context, id uuid.UUID) (*talkonpaper.Talk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	talk, exists := r.talks[id]
	if !exists {
		return nil, talkonpaper.ErrTalkNotFound
	}
	talkCopy := *talk
	return &talkCopy, nil
}

func (r *Repository) GetTalkByPaperID(ctx context.Context, paperID uuid.UUID) (*talkonpaper.Talk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.talkByPaper[paperID]
	if !exists {
		return nil, talkonpaper.ErrTalkNotFound
	}
	talkCopy := *r.talks[id]
	return &talkCopy, nil
}

func (r *Repository) ListTalks(ctx context.Context, params talkonpaper.ListTalksParams) ([]*talkonpaper.Talk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := strings.ToLower(params.Query)
	var result []*talkonpaper.Talk
	for _, talk := range r.talks {
		if params.SpeakerID != nil && talk.SpeakerID != *params.SpeakerID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(talk.Title), query) {
			continue
		}
		talkCopy := *talk
		result = append(result, &talkCopy)
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return limit(result, params.Limit), nil
}

func (r *Repository) UpdateTalk(ctx context.Context, talk *talkonpaper.Talk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.talks[talk.ID]
	if !exists {
		return talkonpaper.ErrTalkNotFound
	}
	if existing.PaperID != talk.PaperID {
		if _, taken := r.talkByPaper[talk.PaperID]; taken {
			return talkonpaper.ErrTalkExists
		}
		delete(r.talkByPaper, existing.PaperID)
		r.talkByPaper[talk.PaperID] = talk.ID
	}

	talkCopy := *talk
	r.talks[talk.ID] = &talkCopy
	return nil
}

// Paper operations

func (r *Repository) CreatePaper(ctx context.Context, paper *talkonpaper.Paper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.paperByRef[paper.DOIOrURL]; exists {
		return talkonpaper.ErrDuplicatePaper
	}

	paperCopy := *paper
	r.papers[paper.ID] = &paperCopy
	r.paperByRef[paper.DOIOrURL] = paper.ID
	return nil
}

func (r *Repository) GetPaper(ctx context.Context, id uuid.UUID) (*talkonpaper.Paper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paper, exists := r.papers[id]
	if !exists {
		return nil, talkonpaper.ErrPaperNotFound
	}
	paperCopy := *paper
	return &paperCopy, nil
}

func (r *Repository) GetPaperByReference(ctx context.Context, doiOrURL string) (*talkonpaper.Paper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.paperByRef[doiOrURL]
	if !exists {
		return nil, talkonpaper.ErrPaperNotFound
	}
	paperCopy := *r.papers[id]
	return &paperCopy, nil
}

func (r *Repository) ListPapers(ctx context.Context, params talkonpaper.ListPapersParams) ([]*talkonpaper.Paper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*talkonpaper.Paper
	for _, paper := range r.papers {
		if params.Year != 0 && paper.PublicationYear != params.Year {
			continue
		}
		paperCopy := *paper
		result = append(result, &paperCopy)
	}

	if params.ByCreated {
		sort.Slice(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	} else {
		sort.SliceStable(result, func(i, j int) bool {
			if result[i].PublicationYear != result[j].PublicationYear {
				return result[i].PublicationYear > result[j].PublicationYear
			}
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	}

	return limit(result, params.Limit), nil
}

// Speaker operations

func (r *Repository) CreateSpeaker(ctx context.Context, speaker *talkonpaper.Speaker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	speakerCopy := *speaker
	r.speakers[speaker.ID] = &speakerCopy
	return nil
}

func (r *Repository) GetSpeaker(ctx context.Context, id uuid.UUID) (*talkonpaper.Speaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	speaker, exists := r.speakers[id]
	if !exists {
		return nil, talkonpaper.ErrSpeakerNotFound
	}
	speakerCopy := *speaker
	return &speakerCopy, nil
}

func (r *Repository) GetSpeakerByName(ctx context.Context, fullName string) (*talkonpaper.Speaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *talkonpaper.Speaker
	for _, speaker := range r.speakers {
		if speaker.FullName != fullName {
			continue
		}
		// Oldest wins when names repeat.
		if found == nil || speaker.CreatedAt.Before(found.CreatedAt) {
			found = speaker
		}
	}
	if found == nil {
		return nil, talkonpaper.ErrSpeakerNotFound
	}
	speakerCopy := *found
	return &speakerCopy, nil
}

func (r *Repository) ListSpeakers(ctx context.Context) ([]*talkonpaper.Speaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*talkonpaper.Speaker, 0, len(r.speakers))
	for _, speaker := range r.speakers {
		speakerCopy := *speaker
		result = append(result, &speakerCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FullName < result[j].FullName
	})
	return result, nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *talkonpaper.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.userByEmail[user.Email]; exists {
		return talkonpaper.ErrDuplicateEmail
	}

	userCopy := *user
	r.users[user.ID] = &userCopy
	r.userByEmail[user.Email] = user.ID
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*talkonpaper.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, talkonpaper.ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*talkonpaper.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.userByEmail[email]
	if !exists {
		return nil, talkonpaper.ErrUserNotFound
	}
	userCopy := *r.users[id]
	return &userCopy, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *talkonpaper.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.users[user.ID]
	if !exists {
		return talkonpaper.ErrUserNotFound
	}
	if existing.Email != user.Email {
		if _, taken := r.userByEmail[user.Email]; taken {
			return talkonpaper.ErrDuplicateEmail
		}
		delete(r.userByEmail, existing.Email)
		r.userByEmail[user.Email] = user.ID
	}

	userCopy := *user
	r.users[user.ID] = &userCopy
	return nil
}

// Count returns catalog totals
func (r *Repository) Count(ctx context.Context) (*talkonpaper.Counts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &talkonpaper.Counts{
		Talks:    len(r.talks),
		Papers:   len(r.papers),
		Speakers: len(r.speakers),
		Users:    len(r.users),
	}, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
