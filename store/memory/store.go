package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/model"
)

// Store keeps accounts, posts and follow edges in maps.
type Store struct {
	mu sync.RWMutex

	accounts   map[string]model.Account
	byEmail    map[string]string
	byUsername map[string]string

	posts   map[string]model.Post
	follows map[string]map[string]time.Time

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts:   make(map[string]model.Account),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		posts:      make(map[string]model.Post),
		follows:    make(map[string]map[string]time.Time),
		now:        time.Now,
	}
}

// FindByEmail returns the account registered under email.
func (s *Store) FindByEmail(_ context.Context, email string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return model.Account{}, model.ErrNotFound
	}
	return s.accounts[id], nil
}

// FindByUsername returns the account holding username.
func (s *Store) FindByUsername(_ context.Context, username string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return model.Account{}, model.ErrNotFound
	}
	return s.accounts[id], nil
}

// FindByID returns the account with id.
func (s *Store) FindByID(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, model.ErrNotFound
	}
	return a, nil
}

// Create inserts a. Duplicate id, email or username is ErrConflict.
func (s *Store) Create(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return model.ErrConflict
	}
	if _, ok := s.byEmail[a.Email]; ok {
		return model.ErrConflict
	}
	if _, ok := s.byUsername[a.Username]; ok {
		return model.ErrConflict
	}

	s.accounts[a.ID] = a
	s.byEmail[a.Email] = a.ID
	s.byUsername[a.Username] = a.ID
	return nil
}

// SaveCredentials writes the password, verification, code and reset fields of a.ID.
func (s *Store) SaveCredentials(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.accounts[a.ID]
	if !ok {
		return model.ErrNotFound
	}
	cur.PasswordHash = a.PasswordHash
	cur.Verified = a.Verified
	cur.OTP = a.OTP
	cur.Reset = a.Reset
	cur.UpdatedAt = a.UpdatedAt
	s.accounts[a.ID] = cur
	return nil
}

// SaveProfile writes the name, bio and website of a.ID.
func (s *Store) SaveProfile(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.accounts[a.ID]
	if !ok {
		return model.ErrNotFound
	}
	cur.Name = a.Name
	cur.Bio = a.Bio
	cur.Website = a.Website
	cur.UpdatedAt = a.UpdatedAt
	s.accounts[a.ID] = cur
	return nil
}

// SaveUsername moves a.ID to a.Username. A handle held by another account is
// ErrConflict.
func (s *Store) SaveUsername(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.accounts[a.ID]
	if !ok {
		return model.ErrNotFound
	}
	if owner, taken := s.byUsername[a.Username]; taken && owner != a.ID {
		return model.ErrConflict
	}

	delete(s.byUsername, cur.Username)
	cur.Username = a.Username
	cur.UpdatedAt = a.UpdatedAt
	s.accounts[a.ID] = cur
	s.byUsername[a.Username] = a.ID
	return nil
}

// Delete removes the account, its posts and its follow edges.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return model.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, a.Email)
	delete(s.byUsername, a.Username)

	for pid, p := range s.posts {
		if p.AuthorID == id {
			delete(s.posts, pid)
		}
	}
	delete(s.follows, id)
	for _, followees := range s.follows {
		delete(followees, id)
	}
	return nil
}

// CreatePost inserts p. A duplicate id is ErrConflict.
func (s *Store) CreatePost(_ context.Context, p model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.ID]; ok {
		return model.ErrConflict
	}
	s.posts[p.ID] = p
	return nil
}

// DeletePost removes the post with postID.
func (s *Store) DeletePost(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[postID]; !ok {
		return model.ErrNotFound
	}
	delete(s.posts, postID)
	return nil
}

// FindPost returns the post with postID.
func (s *Store) FindPost(_ context.Context, postID string) (model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[postID]
	if !ok {
		return model.Post{}, model.ErrNotFound
	}
	return p, nil
}

// ListPostsByAuthor returns authorID's posts, newest first.
func (s *Store) ListPostsByAuthor(_ context.Context, authorID string, offset, limit int) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return page(s.sortedPosts(authorID), offset, limit), nil
}

// ListPosts returns all posts, newest first.
func (s *Store) ListPosts(_ context.Context, offset, limit int) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return page(s.sortedPosts(""), offset, limit), nil
}

// CountPosts counts authorID's posts, or all posts when authorID is empty.
func (s *Store) CountPosts(_ context.Context, authorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if authorID == "" {
		return len(s.posts), nil
	}
	n := 0
	for _, p := range s.posts {
		if p.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (s *Store) sortedPosts(authorID string) []model.Post {
	out := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if authorID == "" || p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Follow adds the edge follower -> followee if absent.
func (s *Store) Follow(_ context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[followerID]; !ok {
		return model.ErrNotFound
	}
	if _, ok := s.accounts[followeeID]; !ok {
		return model.ErrNotFound
	}
	edges := s.follows[followerID]
	if edges == nil {
		edges = make(map[string]time.Time)
		s.follows[followerID] = edges
	}
	if _, ok := edges[followeeID]; !ok {
		edges[followeeID] = s.now()
	}
	return nil
}

// Unfollow removes the edge if present.
func (s *Store) Unfollow(_ context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.follows[followerID], followeeID)
	return nil
}

// IsFollowing reports whether the edge exists.
func (s *Store) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[followerID][followeeID]
	return ok, nil
}

// FollowCounts counts both sides of accountID's edges.
func (s *Store) FollowCounts(_ context.Context, accountID string) (model.FollowCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := model.FollowCounts{Following: len(s.follows[accountID])}
	for follower, edges := range s.follows {
		if follower == accountID {
			continue
		}
		if _, ok := edges[accountID]; ok {
			c.Followers++
		}
	}
	return c, nil
}

// FollowingIDs lists the accounts accountID follows, sorted.
func (s *Store) FollowingIDs(_ context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.follows[accountID]))
	for id := range s.follows[accountID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// SearchAccounts matches query case-insensitively against username and name, ordered
// by username.
func (s *Store) SearchAccounts(_ context.Context, query string, offset, limit int) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var out []model.Account
	for _, a := range s.accounts {
		if strings.Contains(a.Username, q) || strings.Contains(strings.ToLower(a.Name), q) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return page(out, offset, limit), nil
}

// SuggestAccounts returns verified accounts the viewer does not follow, newest first.
func (s *Store) SuggestAccounts(_ context.Context, viewerID string, limit int) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	followed := s.follows[viewerID]
	var out []model.Account
	for _, a := range s.accounts {
		if a.ID == viewerID || !a.Verified {
			continue
		}
		if _, ok := followed[a.ID]; ok {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, 0, limit), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
