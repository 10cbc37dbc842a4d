package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/model"
)

// Account is the durable account record.
type Account = model.Account

// Identity is the authenticated account resolved from a session token.
type Identity = model.Identity

// AccountSummary is the cached profile read model.
type AccountSummary = model.Summary

// Post is a durable post record.
type Post = model.Post

// FollowCounts holds follower/following totals for one account.
type FollowCounts = model.FollowCounts

// PostView, PostPage, AccountHit and SearchPage are the list read models.
type (
	PostView   = model.PostView
	PostPage   = model.PostPage
	AccountHit = model.AccountHit
	SearchPage = model.SearchPage
)

// OTPPurpose tags a pending one-time code.
type OTPPurpose = model.OTPPurpose

const (
	// OTPNone means no code is pending.
	OTPNone = model.OTPNone
	// OTPVerification is the email verification code.
	OTPVerification = model.OTPVerification
	// OTPReset is the password reset code.
	OTPReset = model.OTPReset
)

// CredentialStore is the durable source of truth for accounts.
//
// Lookups return ErrNotFound when no record matches; Create returns ErrConflict when
// the id, email or username is already present.
//
// Updates are scoped to one group of columns so that concurrent writers of different
// groups never revert each other. Each writes only its group plus UpdatedAt on the
// record with account.ID and returns ErrNotFound when it is gone:
//   - SaveCredentials: PasswordHash, Verified, OTP and Reset.
//   - SaveProfile: Name, Bio and Website.
//   - SaveUsername: Username. A handle held by another account is ErrConflict.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	Create(ctx context.Context, account Account) error
	SaveCredentials(ctx context.Context, account Account) error
	SaveProfile(ctx context.Context, account Account) error
	SaveUsername(ctx context.Context, account Account) error
	Delete(ctx context.Context, id string) error
}

// ContentStore holds posts and follow edges.
//
// Follow and Unfollow are idempotent. List methods return newest first. CountPosts
// with an empty authorID counts all posts. SuggestAccounts excludes the viewer and
// accounts the viewer already follows.
type ContentStore interface {
	CreatePost(ctx context.Context, post Post) error
	DeletePost(ctx context.Context, postID string) error
	FindPost(ctx context.Context, postID string) (Post, error)
	ListPostsByAuthor(ctx context.Context, authorID string, offset, limit int) ([]Post, error)
	ListPosts(ctx context.Context, offset, limit int) ([]Post, error)
	CountPosts(ctx context.Context, authorID string) (int, error)

	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	FollowCounts(ctx context.Context, accountID string) (FollowCounts, error)
	FollowingIDs(ctx context.Context, accountID string) ([]string, error)

	SearchAccounts(ctx context.Context, query string, offset, limit int) ([]Account, error)
	SuggestAccounts(ctx context.Context, viewerID string, limit int) ([]Account, error)
}

// OTPMessage is a rendered one-time code notification.
type OTPMessage struct {
	Email   string
	Name    string
	Code    string
	Subject string
	Body    string
	Purpose OTPPurpose
}

// OTPDeliverer sends a rendered code to its recipient. Deliver runs on the background
// executor and is retried with backoff; failures are logged and never reach the caller.
type OTPDeliverer interface {
	Deliver(ctx context.Context, msg OTPMessage) error
}

// OTPDelivererFunc adapts a function to OTPDeliverer.
type OTPDelivererFunc func(ctx context.Context, msg OTPMessage) error

// Deliver calls f.
func (f OTPDelivererFunc) Deliver(ctx context.Context, msg OTPMessage) error {
	return f(ctx, msg)
}

// SignUpRequest is the registration payload. Username is optional; when empty a
// handle is generated from Name.
type SignUpRequest struct {
	Name        string
	Email       string
	Password    string
	Username    string
	PhoneNumber string
	DateOfBirth time.Time
}

// SignUpResult is returned by [Engine.SignUp]. The account is pending verification
// and VerificationToken carries the email-verification purpose.
type SignUpResult struct {
	AccountID         string
	Username          string
	VerificationToken string
}

// VerifyResult is returned by [Engine.VerifyOTP].
type VerifyResult struct {
	Identity     Identity
	SessionToken string
}

// LoginResult is returned by [Engine.Login].
//
// When VerificationRequired is set, Token is an email-verification token and a fresh
// code was sent; it never authorizes API access.
type LoginResult struct {
	AccountID            string
	Token                string
	VerificationRequired bool
}

// TokenResult is returned by [Engine.VerifyToken]. RefreshedToken is set when the
// presented token crossed the refresh threshold.
type TokenResult struct {
	Identity       Identity
	RefreshedToken string
	ExpiresAt      time.Time
}

// ProfileUpdate changes the non-nil fields only.
type ProfileUpdate struct {
	Name    *string
	Bio     *string
	Website *string
}
