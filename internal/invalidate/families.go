package invalidate

import (
	"github.com/MrEthical07/goIdentity/internal/cache"
)

// Family is an exact key or a key prefix declared stale by a mutation.
type Family struct {
	Key    string
	Prefix bool
}

// Exact declares a single key stale.
func Exact(key string) Family {
	return Family{Key: key}
}

// Prefix declares every key starting with prefix stale.
func Prefix(prefix string) Family {
	return Family{Key: prefix, Prefix: true}
}

func (f Family) String() string {
	if f.Prefix {
		return f.Key + "*"
	}
	return f.Key
}

// CredentialsChanged is the subset of AccountChanged that grants access: the login
// projection and the session projection.
func CredentialsChanged(email, accountID string) []Family {
	return []Family{
		Exact(cache.CredentialKey(email)),
		Exact(cache.SessionKey(accountID)),
	}
}

// AccountChanged covers verification, password reset and password change.
func AccountChanged(email, accountID string) []Family {
	return append(CredentialsChanged(email, accountID), Exact(cache.ProfileKey(accountID)))
}

// ProfileChanged covers profile edits, which surface in posts, the feed and search
// results computed for the account.
func ProfileChanged(email, accountID string) []Family {
	return append(AccountChanged(email, accountID),
		Prefix(cache.UserPostsPrefix(accountID)),
		Prefix(cache.FeedPrefix()),
		Prefix(cache.SearchPrefix(accountID)),
	)
}

// UsernameChanged extends ProfileChanged to every viewer's search pages, since the
// old handle may be listed in any of them.
func UsernameChanged(email, accountID string) []Family {
	return append(AccountChanged(email, accountID),
		Prefix(cache.UserPostsPrefix(accountID)),
		Prefix(cache.FeedPrefix()),
		Prefix(cache.SearchAllPrefix()),
	)
}

// PostsChanged covers post creation and deletion.
func PostsChanged(authorID string) []Family {
	return []Family{
		Exact(cache.ProfileKey(authorID)),
		Prefix(cache.UserPostsPrefix(authorID)),
		Prefix(cache.FeedPrefix()),
	}
}

// FollowChanged covers follow and unfollow between a and b.
func FollowChanged(a, b string) []Family {
	return []Family{
		Exact(cache.ProfileKey(a)),
		Exact(cache.ProfileKey(b)),
		Prefix(cache.SearchPrefix(a)),
		Prefix(cache.SearchPrefix(b)),
	}
}

// SessionEnded covers logout.
func SessionEnded(accountID string) []Family {
	return []Family{Exact(cache.SessionKey(accountID))}
}
