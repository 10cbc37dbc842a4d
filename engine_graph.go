package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal/cache"
	"github.com/MrEthical07/goIdentity/internal/invalidate"
	"golang.org/x/sync/errgroup"
)

// Follow records that followerID follows followeeID. Repeating it is a no-op.
// Following yourself is ErrInvalidInput; an unknown follower or followee is
// ErrNotFound.
func (e *Engine) Follow(ctx context.Context, followerID, followeeID string) error {
	return e.changeFollow(ctx, followerID, followeeID, true)
}

// Unfollow removes the edge. Removing a missing edge is a no-op.
func (e *Engine) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return e.changeFollow(ctx, followerID, followeeID, false)
}

func (e *Engine) changeFollow(ctx context.Context, followerID, followeeID string, follow bool) error {
	if e == nil || e.content == nil {
		return ErrEngineNotReady
	}
	if followerID == "" || followerID == followeeID {
		return ErrInvalidInput
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := e.accounts.FindByID(gctx, followerID)
		return storeError("follow.find_follower", err)
	})
	g.Go(func() error {
		_, err := e.accounts.FindByID(gctx, followeeID)
		return storeError("follow.find_followee", err)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	event, metric := auditEventFollow, MetricFollow
	var err error
	if follow {
		err = e.content.Follow(ctx, followerID, followeeID)
	} else {
		event, metric = auditEventUnfollow, MetricUnfollow
		err = e.content.Unfollow(ctx, followerID, followeeID)
	}
	if err != nil {
		return storeError(event, err)
	}

	e.coordinator.Invalidate(ctx, event, invalidate.FollowChanged(followerID, followeeID)...)
	e.metricInc(metric)
	e.emitAudit(ctx, event, followerID, nil, map[string]string{"followee_id": followeeID})
	return nil
}

// SearchAccounts finds accounts whose username or name contains query, annotated
// with whether viewerID follows each one. Results are cached per viewer.
func (e *Engine) SearchAccounts(ctx context.Context, viewerID, query string, page, limit int) (*SearchPage, error) {
	if e == nil || e.content == nil {
		return nil, ErrEngineNotReady
	}
	query = cache.NormalizeQuery(query)
	if query == "" {
		return nil, ErrInvalidInput
	}
	page, limit = e.pageBounds(page, limit)

	key := cache.SearchKey(viewerID, query, page, limit)
	var out SearchPage
	if e.cache.GetJSON(ctx, key, &out) {
		return &out, nil
	}

	var (
		found     []Account
		following []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		found, err = e.content.SearchAccounts(gctx, query, (page-1)*limit, limit)
		return storeError("search.accounts", err)
	})
	g.Go(func() error {
		var err error
		following, err = e.content.FollowingIDs(gctx, viewerID)
		return storeError("search.following", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	followed := make(map[string]struct{}, len(following))
	for _, id := range following {
		followed[id] = struct{}{}
	}

	out = SearchPage{Items: make([]AccountHit, 0, len(found)), Page: page, Limit: limit}
	for _, a := range found {
		_, ok := followed[a.ID]
		out.Items = append(out.Items, AccountHit{
			ID:               a.ID,
			Username:         a.Username,
			Name:             a.Name,
			FollowedByViewer: ok,
		})
	}
	e.cache.SetJSON(ctx, key, out, e.config.Cache.SearchTTL)
	return &out, nil
}

// SuggestFollows returns up to limit accounts viewerID does not follow yet.
func (e *Engine) SuggestFollows(ctx context.Context, viewerID string, limit int) (*SearchPage, error) {
	if e == nil || e.content == nil {
		return nil, ErrEngineNotReady
	}
	_, limit = e.pageBounds(1, limit)

	key := cache.SuggestKey(viewerID, limit)
	var out SearchPage
	if e.cache.GetJSON(ctx, key, &out) {
		return &out, nil
	}

	found, err := e.content.SuggestAccounts(ctx, viewerID, limit)
	if err != nil {
		return nil, storeError("suggest.accounts", err)
	}

	out = SearchPage{Items: make([]AccountHit, 0, len(found)), Page: 1, Limit: limit}
	for _, a := range found {
		out.Items = append(out.Items, AccountHit{ID: a.ID, Username: a.Username, Name: a.Name})
	}
	e.cache.SetJSON(ctx, key, out, e.config.Cache.SearchTTL)
	return &out, nil
}
