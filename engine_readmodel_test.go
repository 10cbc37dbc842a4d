package goIdentity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPostsPaginationAndFeed(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine
	alice, _ := env.signUpVerified(t, "Alice", "alice@example.com", "password-1")
	bob, _ := env.signUpVerified(t, "Bob", "bob@example.com", "password-1")

	var ids []string
	for i := 0; i < 5; i++ {
		env.clock.Advance(time.Second)
		p, err := e.CreatePost(ctx, alice, "post")
		if err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
		ids = append(ids, p.ID)
	}
	env.clock.Advance(time.Second)
	if _, err := e.CreatePost(ctx, bob, "from bob"); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	page1, err := e.ListUserPosts(ctx, alice, 1, 2)
	if err != nil {
		t.Fatalf("ListUserPosts failed: %v", err)
	}
	if page1.Total != 5 || len(page1.Items) != 2 || page1.Items[0].ID != ids[4] || page1.Items[1].ID != ids[3] {
		t.Fatalf("unexpected first page: %+v", page1)
	}
	if page1.Items[0].AuthorUsername != "alice" {
		t.Fatalf("expected author handle, got %q", page1.Items[0].AuthorUsername)
	}
	page3, err := e.ListUserPosts(ctx, alice, 3, 2)
	if err != nil {
		t.Fatalf("ListUserPosts failed: %v", err)
	}
	if len(page3.Items) != 1 || page3.Items[0].ID != ids[0] {
		t.Fatalf("unexpected last page: %+v", page3)
	}
	page9, err := e.ListUserPosts(ctx, alice, 9, 2)
	if err != nil {
		t.Fatalf("ListUserPosts failed: %v", err)
	}
	if len(page9.Items) != 0 {
		t.Fatalf("expected empty page past the end, got %+v", page9)
	}

	capped, err := e.ListUserPosts(ctx, alice, 0, 1000)
	if err != nil {
		t.Fatalf("ListUserPosts failed: %v", err)
	}
	if capped.Page != 1 || capped.Limit != 50 {
		t.Fatalf("expected page/limit bounds to apply, got page=%d limit=%d", capped.Page, capped.Limit)
	}

	feed, err := e.ListFeed(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListFeed failed: %v", err)
	}
	if feed.Total != 6 || feed.Items[0].AuthorUsername != "bob" || feed.Items[1].AuthorUsername != "alice" {
		t.Fatalf("unexpected feed: %+v", feed)
	}

	// New posts show up at once.
	env.clock.Advance(time.Second)
	if _, err := e.CreatePost(ctx, alice, "latest"); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	feed, err = e.ListFeed(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListFeed failed: %v", err)
	}
	if feed.Items[0].Caption != "latest" {
		t.Fatalf("expected invalidated feed, got %+v", feed.Items[0])
	}
}

func TestPostValidationAndOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine
	alice, _ := env.signUpVerified(t, "Alice", "alice@example.com", "password-1")
	bob, _ := env.signUpVerified(t, "Bob", "bob@example.com", "password-1")

	if _, err := e.CreatePost(ctx, alice, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected empty caption rejected, got %v", err)
	}
	if _, err := e.CreatePost(ctx, alice, strings.Repeat("x", 2201)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected long caption rejected, got %v", err)
	}
	if _, err := e.CreatePost(ctx, "ghost", "hi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown author, got %v", err)
	}

	p, err := e.CreatePost(ctx, alice, "mine")
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if err := e.DeletePost(ctx, bob, p.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for another author, got %v", err)
	}
	if err := e.DeletePost(ctx, alice, p.ID); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	if err := e.DeletePost(ctx, alice, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	summary, err := e.GetProfile(ctx, alice)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if summary.Posts != 0 {
		t.Fatalf("expected post count to drop, got %d", summary.Posts)
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id, _ := env.signUpVerified(t, "Cleo", "cleo@example.com", "password-1")

	long := strings.Repeat("b", 281)
	if _, err := env.engine.UpdateProfile(ctx, id, ProfileUpdate{Bio: &long}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected long bio rejected, got %v", err)
	}
	bad := "http://example.com/a b"
	if _, err := env.engine.UpdateProfile(ctx, id, ProfileUpdate{Website: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected website with spaces rejected, got %v", err)
	}

	bio, site := "hello", "https://cleo.example.com"
	summary, err := env.engine.UpdateProfile(ctx, id, ProfileUpdate{Bio: &bio, Website: &site})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if summary.Bio != bio || summary.Website != site || summary.Name != "Cleo" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestUpdateUsernameTaken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine
	alice, _ := env.signUpVerified(t, "Alice", "alice@example.com", "password-1")
	env.signUpVerified(t, "Bob", "bob@example.com", "password-1")

	if err := e.UpdateUsername(ctx, alice, "alice"); err != nil {
		t.Fatalf("same handle must be a no-op, got %v", err)
	}
	if err := e.UpdateUsername(ctx, alice, "Not Valid!"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid handle rejected, got %v", err)
	}

	err := e.UpdateUsername(ctx, alice, "bob")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var taken *UsernameTakenError
	if !errors.As(err, &taken) {
		t.Fatalf("expected *UsernameTakenError, got %T", err)
	}
	if len(taken.Suggestions) == 0 {
		t.Fatal("expected suggestions for a taken handle")
	}
	for _, s := range taken.Suggestions {
		if s == "bob" || !strings.HasPrefix(s, "bob") {
			t.Fatalf("unexpected suggestion %q", s)
		}
	}
	if Classify(err) != StatusClientError {
		t.Fatalf("expected client error, got %v", Classify(err))
	}

	suggestions, err := e.UsernameSuggestions(ctx, alice, "")
	if err != nil && !errors.Is(err, ErrExhausted) {
		t.Fatalf("UsernameSuggestions failed: %v", err)
	}
	for _, s := range suggestions {
		if !strings.HasPrefix(s, "alice") {
			t.Fatalf("expected suggestions derived from the account name, got %q", s)
		}
	}
}

func TestFollowRules(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine
	a, _ := env.signUpVerified(t, "Ada", "ada@example.com", "password-1")
	b, _ := env.signUpVerified(t, "Bea", "bea@example.com", "password-1")

	if err := e.Follow(ctx, a, a); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected self-follow rejected, got %v", err)
	}
	if err := e.Follow(ctx, a, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown followee, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := e.Follow(ctx, a, b); err != nil {
			t.Fatalf("Follow failed: %v", err)
		}
	}
	summary, err := e.GetProfile(ctx, b)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if summary.Followers != 1 {
		t.Fatalf("expected idempotent follow, got %d followers", summary.Followers)
	}
}

func TestSearchAndSuggestRelativeToViewer(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e := env.engine
	viewer, _ := env.signUpVerified(t, "Viewer", "viewer@example.com", "password-1")
	sam, _ := env.signUpVerified(t, "Sam Stone", "sam@example.com", "password-1")
	env.signUpVerified(t, "Samantha", "samantha@example.com", "password-1")
	env.signUpVerified(t, "Zed", "zed@example.com", "password-1")

	if _, err := e.SearchAccounts(ctx, viewer, "   ", 1, 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected empty query rejected, got %v", err)
	}

	res, err := e.SearchAccounts(ctx, viewer, "  SAM ", 1, 10)
	if err != nil {
		t.Fatalf("SearchAccounts failed: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected two hits, got %+v", res.Items)
	}
	for _, hit := range res.Items {
		if hit.FollowedByViewer {
			t.Fatalf("nothing followed yet, got %+v", hit)
		}
	}

	if err := e.Follow(ctx, viewer, sam); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	res, err = e.SearchAccounts(ctx, viewer, "sam", 1, 10)
	if err != nil {
		t.Fatalf("SearchAccounts failed: %v", err)
	}
	var followed int
	for _, hit := range res.Items {
		if hit.FollowedByViewer {
			followed++
			if hit.ID != sam {
				t.Fatalf("wrong hit marked followed: %+v", hit)
			}
		}
	}
	if followed != 1 {
		t.Fatalf("expected follow to refresh the viewer's search results, got %+v", res.Items)
	}

	sugg, err := e.SuggestFollows(ctx, viewer, 10)
	if err != nil {
		t.Fatalf("SuggestFollows failed: %v", err)
	}
	if len(sugg.Items) != 2 {
		t.Fatalf("expected two suggestions, got %+v", sugg.Items)
	}
	for _, hit := range sugg.Items {
		if hit.ID == viewer || hit.ID == sam {
			t.Fatalf("suggestion must exclude self and followed accounts, got %+v", hit)
		}
	}
}
