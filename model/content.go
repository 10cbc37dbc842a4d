package model

import "time"

// Post is a caption authored by an account.
type Post struct {
	ID        string
	AuthorID  string
	Caption   string
	CreatedAt time.Time
}

// FollowCounts holds both sides of an account's follow graph.
type FollowCounts struct {
	Followers int
	Following int
}
