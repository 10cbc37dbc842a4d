package cache

import (
	"strconv"
	"strings"
)

const (
	credentialPrefix = "cred:"
	sessionPrefix    = "session:"
	profilePrefix    = "profile:"
	userPostsPrefix  = "userPosts:"
	feedPrefix       = "feed:"
	searchPrefix     = "search:"
)

// CredentialKey addresses the login projection for email.
func CredentialKey(email string) string {
	return credentialPrefix + email
}

// SessionKey addresses the projection returned by token verification.
func SessionKey(accountID string) string {
	return sessionPrefix + accountID
}

// ProfileKey addresses the public account summary.
func ProfileKey(accountID string) string {
	return profilePrefix + accountID
}

// UserPostsKey addresses one page of an author's posts.
func UserPostsKey(authorID string, page, limit int) string {
	return UserPostsPrefix(authorID) + strconv.Itoa(page) + ":limit:" + strconv.Itoa(limit)
}

// UserPostsPrefix covers every cached page of an author's posts.
func UserPostsPrefix(authorID string) string {
	return userPostsPrefix + authorID + ":page:"
}

// FeedKey addresses one page of the global feed.
func FeedKey(page, limit int) string {
	return FeedPrefix() + strconv.Itoa(page) + ":limit:" + strconv.Itoa(limit)
}

// FeedPrefix covers every cached feed page.
func FeedPrefix() string {
	return feedPrefix + "page:"
}

// SearchKey addresses one page of viewer-relative search results.
func SearchKey(viewerID, query string, page, limit int) string {
	return SearchPrefix(viewerID) + "q:" + NormalizeQuery(query) + ":page:" + strconv.Itoa(page) + ":limit:" + strconv.Itoa(limit)
}

// SuggestKey addresses viewer-relative follow suggestions.
func SuggestKey(viewerID string, limit int) string {
	return SearchPrefix(viewerID) + "suggest:limit:" + strconv.Itoa(limit)
}

// SearchPrefix covers every search and suggestion page computed for viewerID.
func SearchPrefix(viewerID string) string {
	return searchPrefix + viewerID + ":"
}

// SearchAllPrefix covers every viewer's search and suggestion pages.
func SearchAllPrefix() string {
	return searchPrefix
}

// NormalizeQuery folds case and surrounding space so equivalent queries share a key.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// Family names a key kind and the prefix every key of that kind starts with.
type Family struct {
	Name   string
	Prefix string
}

// Families lists every key kind the engine writes, in a stable order.
func Families() []Family {
	return []Family{
		{Name: "credential", Prefix: credentialPrefix},
		{Name: "session", Prefix: sessionPrefix},
		{Name: "profile", Prefix: profilePrefix},
		{Name: "userPosts", Prefix: userPostsPrefix},
		{Name: "feed", Prefix: feedPrefix},
		{Name: "search", Prefix: searchPrefix},
	}
}
