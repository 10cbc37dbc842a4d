package goIdentity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/MrEthical07/goIdentity/internal/cache"
	"github.com/MrEthical07/goIdentity/internal/invalidate"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxCaptionLen = 2200

// CreatePost stores a post for authorID and invalidates the author's profile, the
// author's post pages and the feed.
func (e *Engine) CreatePost(ctx context.Context, authorID, caption string) (*PostView, error) {
	if e == nil || e.content == nil {
		return nil, ErrEngineNotReady
	}

	caption = strings.TrimSpace(caption)
	if caption == "" || utf8.RuneCountInString(caption) > maxCaptionLen {
		return nil, ErrInvalidInput
	}

	author, err := e.accounts.FindByID(ctx, authorID)
	if err != nil {
		return nil, storeError("create_post.author", err)
	}

	post := Post{
		ID:        uuid.NewString(),
		AuthorID:  author.ID,
		Caption:   caption,
		CreatedAt: e.now(),
	}
	if err := e.content.CreatePost(ctx, post); err != nil {
		return nil, storeError("create_post.save", err)
	}

	e.coordinator.Invalidate(ctx, auditEventPostCreate, invalidate.PostsChanged(author.ID)...)
	e.metricInc(MetricPostCreated)
	e.emitAudit(ctx, auditEventPostCreate, author.ID, nil, map[string]string{"post_id": post.ID})

	return &PostView{
		ID:             post.ID,
		AuthorID:       post.AuthorID,
		AuthorUsername: author.Username,
		Caption:        post.Caption,
		CreatedAt:      post.CreatedAt,
	}, nil
}

// DeletePost removes a post. Only its author may delete it; anyone else gets
// ErrUnauthorized.
func (e *Engine) DeletePost(ctx context.Context, authorID, postID string) error {
	if e == nil || e.content == nil {
		return ErrEngineNotReady
	}

	post, err := e.content.FindPost(ctx, postID)
	if err != nil {
		return storeError("delete_post.find", err)
	}
	if post.AuthorID != authorID {
		e.emitAudit(ctx, auditEventPostDelete, authorID, ErrUnauthorized, map[string]string{"post_id": postID})
		return ErrUnauthorized
	}
	if err := e.content.DeletePost(ctx, postID); err != nil {
		return storeError("delete_post.delete", err)
	}

	e.coordinator.Invalidate(ctx, auditEventPostDelete, invalidate.PostsChanged(post.AuthorID)...)
	e.metricInc(MetricPostDeleted)
	e.emitAudit(ctx, auditEventPostDelete, authorID, nil, map[string]string{"post_id": postID})
	return nil
}

// ListUserPosts returns one page of authorID's posts, newest first.
//
// page defaults to 1 and limit to Pagination.DefaultLimit; limit is capped at
// Pagination.MaxLimit.
func (e *Engine) ListUserPosts(ctx context.Context, authorID string, page, limit int) (*PostPage, error) {
	if e == nil || e.content == nil {
		return nil, ErrEngineNotReady
	}
	page, limit = e.pageBounds(page, limit)

	key := cache.UserPostsKey(authorID, page, limit)
	var out PostPage
	if e.cache.GetJSON(ctx, key, &out) {
		return &out, nil
	}

	var (
		author Account
		posts  []Post
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		author, err = e.accounts.FindByID(gctx, authorID)
		return storeError("list_user_posts.author", err)
	})
	g.Go(func() error {
		var err error
		posts, err = e.content.ListPostsByAuthor(gctx, authorID, (page-1)*limit, limit)
		return storeError("list_user_posts.list", err)
	})
	g.Go(func() error {
		var err error
		total, err = e.content.CountPosts(gctx, authorID)
		return storeError("list_user_posts.count", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out = PostPage{Items: make([]PostView, 0, len(posts)), Page: page, Limit: limit, Total: total}
	for _, p := range posts {
		out.Items = append(out.Items, PostView{
			ID:             p.ID,
			AuthorID:       p.AuthorID,
			AuthorUsername: author.Username,
			Caption:        p.Caption,
			CreatedAt:      p.CreatedAt,
		})
	}
	e.cache.SetJSON(ctx, key, out, e.config.Cache.PostsTTL)
	return &out, nil
}

// ListFeed returns one page of all posts, newest first.
func (e *Engine) ListFeed(ctx context.Context, page, limit int) (*PostPage, error) {
	if e == nil || e.content == nil {
		return nil, ErrEngineNotReady
	}
	page, limit = e.pageBounds(page, limit)

	key := cache.FeedKey(page, limit)
	var out PostPage
	if e.cache.GetJSON(ctx, key, &out) {
		return &out, nil
	}

	var (
		posts []Post
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = e.content.ListPosts(gctx, (page-1)*limit, limit)
		return storeError("list_feed.list", err)
	})
	g.Go(func() error {
		var err error
		total, err = e.content.CountPosts(gctx, "")
		return storeError("list_feed.count", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	handles, err := e.resolveHandles(ctx, posts)
	if err != nil {
		return nil, err
	}

	out = PostPage{Items: make([]PostView, 0, len(posts)), Page: page, Limit: limit, Total: total}
	for _, p := range posts {
		out.Items = append(out.Items, PostView{
			ID:             p.ID,
			AuthorID:       p.AuthorID,
			AuthorUsername: handles[p.AuthorID],
			Caption:        p.Caption,
			CreatedAt:      p.CreatedAt,
		})
	}
	e.cache.SetJSON(ctx, key, out, e.config.Cache.FeedTTL)
	return &out, nil
}

// resolveHandles looks up each distinct author once. Deleted authors resolve to "".
func (e *Engine) resolveHandles(ctx context.Context, posts []Post) (map[string]string, error) {
	handles := make(map[string]string, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := handles[p.AuthorID]; !ok {
			handles[p.AuthorID] = ""
			ids = append(ids, p.AuthorID)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			acct, err := e.accounts.FindByID(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return storeError("list_feed.author", err)
			}
			mu.Lock()
			handles[id] = acct.Username
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return handles, nil
}

func (e *Engine) pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = e.config.Pagination.DefaultLimit
	}
	if limit > e.config.Pagination.MaxLimit {
		limit = e.config.Pagination.MaxLimit
	}
	return page, limit
}
