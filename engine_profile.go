package goIdentity

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/goIdentity/internal/cache"
	"github.com/MrEthical07/goIdentity/internal/invalidate"
	"github.com/MrEthical07/goIdentity/internal/username"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

const (
	maxNameLen    = 64
	maxBioLen     = 280
	maxWebsiteLen = 200
)

// GetProfile returns the account summary, read through the profile cache.
func (e *Engine) GetProfile(ctx context.Context, accountID string) (*AccountSummary, error) {
	if e == nil || e.content == nil {
		return nil, ErrEngineNotReady
	}

	key := cache.ProfileKey(accountID)
	var summary AccountSummary
	if e.cache.GetJSON(ctx, key, &summary) && summary.ID == accountID {
		return &summary, nil
	}

	return e.refreshProfile(ctx, accountID)
}

// refreshProfile rebuilds the summary from the stores and caches it.
func (e *Engine) refreshProfile(ctx context.Context, accountID string) (*AccountSummary, error) {
	summary, err := e.buildSummary(ctx, accountID)
	if err != nil {
		return nil, err
	}
	e.cache.SetJSON(ctx, cache.ProfileKey(accountID), summary, e.config.Cache.ProfileTTL)
	return &summary, nil
}

func (e *Engine) buildSummary(ctx context.Context, accountID string) (AccountSummary, error) {
	var (
		acct   Account
		posts  int
		counts FollowCounts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		acct, err = e.accounts.FindByID(gctx, accountID)
		return storeError("profile.find", err)
	})
	g.Go(func() error {
		var err error
		posts, err = e.content.CountPosts(gctx, accountID)
		return storeError("profile.count_posts", err)
	})
	g.Go(func() error {
		var err error
		counts, err = e.content.FollowCounts(gctx, accountID)
		return storeError("profile.follow_counts", err)
	})
	if err := g.Wait(); err != nil {
		return AccountSummary{}, err
	}

	return AccountSummary{
		ID:        acct.ID,
		Username:  acct.Username,
		Name:      acct.Name,
		Bio:       acct.Bio,
		Website:   acct.Website,
		Verified:  acct.Verified,
		Posts:     posts,
		Followers: counts.Followers,
		Following: counts.Following,
	}, nil
}

// UpdateProfile applies the non-nil fields of upd, invalidates every view that shows
// them and returns the summary as read back from the stores.
func (e *Engine) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (*AccountSummary, error) {
	if e == nil || e.content == nil {
		return nil, ErrEngineNotReady
	}

	acct, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, storeError("update_profile.find", err)
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || utf8.RuneCountInString(name) > maxNameLen {
			return nil, ErrInvalidInput
		}
		acct.Name = name
	}
	if upd.Bio != nil {
		if utf8.RuneCountInString(*upd.Bio) > maxBioLen {
			return nil, ErrInvalidInput
		}
		acct.Bio = strings.TrimSpace(*upd.Bio)
	}
	if upd.Website != nil {
		site := strings.TrimSpace(*upd.Website)
		if len(site) > maxWebsiteLen || strings.ContainsAny(site, " \t\n") {
			return nil, ErrInvalidInput
		}
		acct.Website = site
	}

	acct.UpdatedAt = e.now()
	if err := e.accounts.SaveProfile(ctx, acct); err != nil {
		return nil, storeError("update_profile.save", err)
	}
	e.coordinator.Invalidate(ctx, auditEventProfileUpdate, invalidate.ProfileChanged(acct.Email, acct.ID)...)
	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdate, acct.ID, nil, nil)

	return e.refreshProfile(ctx, accountID)
}

// UpdateUsername changes the account's handle.
//
// The same handle is a no-op. A taken handle returns a *UsernameTakenError, which
// matches ErrConflict, carrying free alternatives when any were found.
func (e *Engine) UpdateUsername(ctx context.Context, accountID, requested string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	requested = strings.TrimSpace(requested)
	if !username.Valid(requested) {
		return ErrInvalidInput
	}

	acct, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return storeError("update_username.find", err)
	}
	if acct.Username == requested {
		return nil
	}

	taken, err := e.usernameTaken(ctx, requested)
	if err != nil {
		return storeError("update_username.taken", err)
	}
	if taken {
		suggestions, _ := e.suggest(ctx, requested)
		e.emitAudit(ctx, auditEventUsernameChange, acct.ID, ErrConflict, map[string]string{"requested": requested})
		return &UsernameTakenError{Username: requested, Suggestions: suggestions}
	}

	prev := acct.Username
	acct.Username = requested
	acct.UpdatedAt = e.now()
	if err := e.accounts.SaveUsername(ctx, acct); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost a race for the handle.
			suggestions, _ := e.suggest(ctx, requested)
			return &UsernameTakenError{Username: requested, Suggestions: suggestions}
		}
		return storeError("update_username.save", err)
	}

	e.coordinator.Invalidate(ctx, auditEventUsernameChange, invalidate.UsernameChanged(acct.Email, acct.ID)...)
	if e.content != nil {
		if _, err := e.refreshProfile(ctx, accountID); err != nil {
			e.logger.Debug("profile refresh after username change failed", zap.String("account_id", acct.ID), zap.Error(err))
		}
	}
	e.metricInc(MetricUsernameChanged)
	e.emitAudit(ctx, auditEventUsernameChange, acct.ID, nil, map[string]string{"from": prev, "to": requested})
	return nil
}

// UsernameSuggestions returns free handles derived from attempted, or from the
// account's current name when attempted is empty. ErrExhausted is returned, along
// with any partial result, when fewer than Username.Suggestions were found.
func (e *Engine) UsernameSuggestions(ctx context.Context, accountID, attempted string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(attempted) == "" {
		acct, err := e.accounts.FindByID(ctx, accountID)
		if err != nil {
			return nil, storeError("username_suggestions.find", err)
		}
		attempted = acct.Name
	}
	return e.suggest(ctx, attempted)
}

func (e *Engine) suggest(ctx context.Context, attempted string) ([]string, error) {
	out, err := e.usernames.Suggest(ctx, attempted, e.config.Username.Suggestions, e.config.Username.SuggestionProbes)
	if err != nil {
		if errors.Is(err, username.ErrExhausted) {
			return out, ErrExhausted
		}
		e.logger.Warn("username suggestions failed", zap.Error(err))
		return out, storeError("username.suggest", err)
	}
	return out, nil
}
