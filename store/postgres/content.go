package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/MrEthical07/goIdentity/model"
)

// CreatePost implements ContentStore.
func (s *Store) CreatePost(ctx context.Context, p model.Post) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO posts (id, author_id, caption, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.AuthorID, p.Caption, utc(p.CreatedAt))
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return model.ErrConflict
	case isForeignKeyViolation(err):
		return model.ErrNotFound
	}
	return oops.Code("POST_CREATE_FAILED").With("post_id", p.ID).Wrap(err)
}

// DeletePost implements ContentStore.
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	if err != nil {
		return oops.Code("POST_DELETE_FAILED").With("post_id", postID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// FindPost implements ContentStore.
func (s *Store) FindPost(ctx context.Context, postID string) (model.Post, error) {
	var p model.Post
	err := s.db.QueryRow(ctx,
		`SELECT id, author_id, caption, created_at FROM posts WHERE id = $1`, postID).
		Scan(&p.ID, &p.AuthorID, &p.Caption, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, model.ErrNotFound
	}
	if err != nil {
		return model.Post{}, oops.Code("POST_FIND_FAILED").With("post_id", postID).Wrap(err)
	}
	return p, nil
}

// ListPostsByAuthor returns authorID's posts, newest first.
func (s *Store) ListPostsByAuthor(ctx context.Context, authorID string, offset, limit int) ([]model.Post, error) {
	return s.listPosts(ctx, "list_posts_by_author", `
		SELECT id, author_id, caption, created_at FROM posts
		WHERE author_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`, authorID, offset, limit)
}

// ListPosts returns all posts, newest first.
func (s *Store) ListPosts(ctx context.Context, offset, limit int) ([]model.Post, error) {
	return s.listPosts(ctx, "list_posts", `
		SELECT id, author_id, caption, created_at FROM posts
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`, offset, limit)
}

func (s *Store) listPosts(ctx context.Context, op, query string, args ...any) ([]model.Post, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", op).Wrap(err)
	}
	defer rows.Close()

	out := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Caption, &p.CreatedAt); err != nil {
			return nil, oops.Code("POST_LIST_FAILED").With("operation", op).Wrap(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", op).Wrap(err)
	}
	return out, nil
}

// CountPosts counts authorID's posts, or every post when authorID is empty.
func (s *Store) CountPosts(ctx context.Context, authorID string) (int, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM posts WHERE $1 = '' OR author_id = $1`, authorID).Scan(&n)
	if err != nil {
		return 0, oops.Code("POST_COUNT_FAILED").With("author_id", authorID).Wrap(err)
	}
	return int(n), nil
}

// Follow inserts the edge; an existing edge is left alone. An unknown account on
// either side is model.ErrNotFound.
func (s *Store) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, followerID, followeeID)
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		return model.ErrNotFound
	}
	return oops.Code("FOLLOW_FAILED").With("follower_id", followerID).With("followee_id", followeeID).Wrap(err)
}

// Unfollow removes the edge if present.
func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return oops.Code("UNFOLLOW_FAILED").With("follower_id", followerID).With("followee_id", followeeID).Wrap(err)
	}
	return nil
}

// IsFollowing implements ContentStore.
func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`,
		followerID, followeeID).Scan(&ok)
	if err != nil {
		return false, oops.Code("FOLLOW_LOOKUP_FAILED").With("follower_id", followerID).Wrap(err)
	}
	return ok, nil
}

// FollowCounts implements ContentStore.
func (s *Store) FollowCounts(ctx context.Context, accountID string) (model.FollowCounts, error) {
	var followers, following int64
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM follows WHERE followee_id = $1),
			(SELECT count(*) FROM follows WHERE follower_id = $1)`, accountID).
		Scan(&followers, &following)
	if err != nil {
		return model.FollowCounts{}, oops.Code("FOLLOW_COUNT_FAILED").With("account_id", accountID).Wrap(err)
	}
	return model.FollowCounts{Followers: int(followers), Following: int(following)}, nil
}

// FollowingIDs implements ContentStore.
func (s *Store) FollowingIDs(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY followee_id`, accountID)
	if err != nil {
		return nil, oops.Code("FOLLOWING_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, oops.Code("FOLLOWING_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	return ids, nil
}

// SearchAccounts matches query case-insensitively against username and name.
func (s *Store) SearchAccounts(ctx context.Context, query string, offset, limit int) ([]model.Account, error) {
	return s.listAccounts(ctx, "search_accounts", `
		SELECT `+accountColumns+` FROM accounts
		WHERE username ILIKE $1 OR name ILIKE $1
		ORDER BY username
		OFFSET $2 LIMIT $3`, likePattern(query), offset, limit)
}

// SuggestAccounts returns verified accounts viewerID does not follow, newest first.
func (s *Store) SuggestAccounts(ctx context.Context, viewerID string, limit int) ([]model.Account, error) {
	return s.listAccounts(ctx, "suggest_accounts", `
		SELECT `+accountColumns+` FROM accounts a
		WHERE a.id <> $1 AND a.verified
		  AND NOT EXISTS (SELECT 1 FROM follows f WHERE f.follower_id = $1 AND f.followee_id = a.id)
		ORDER BY a.created_at DESC, a.id
		LIMIT $2`, viewerID, limit)
}

func (s *Store) listAccounts(ctx context.Context, op, query string, args ...any) ([]model.Account, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", op).Wrap(err)
	}
	defer rows.Close()

	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", op).Wrap(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", op).Wrap(err)
	}
	return out, nil
}
