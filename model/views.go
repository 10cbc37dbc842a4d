package model

import "time"

// Identity is the cached projection returned by token verification.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// IdentityOf projects a.
func IdentityOf(a Account) Identity {
	return Identity{
		ID:       a.ID,
		Email:    a.Email,
		Username: a.Username,
		Name:     a.Name,
		Verified: a.Verified,
	}
}

// Summary is the public profile projection.
type Summary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Bio       string `json:"bio,omitempty"`
	Website   string `json:"website,omitempty"`
	Verified  bool   `json:"verified"`
	Posts     int    `json:"posts"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
}

// PostView is a post annotated with its author's handle.
type PostView struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Caption        string    `json:"caption"`
	CreatedAt      time.Time `json:"created_at"`
}

// PostPage is one page of posts.
type PostPage struct {
	Items []PostView `json:"items"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Total int        `json:"total,omitempty"`
}

// AccountHit is a search or suggestion result relative to a viewer.
type AccountHit struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Name             string `json:"name"`
	FollowedByViewer bool   `json:"followed_by_viewer"`
}

// SearchPage is one page of account hits.
type SearchPage struct {
	Items []AccountHit `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}
