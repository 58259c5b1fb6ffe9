// Package storage stores uploaded images in a bucket and builds the public
// URLs they are served from.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that are empty, absolute or climb out of
// the bucket root.
var ErrInvalidKey = errors.New("invalid object key")

// Bucket is an object store addressed by slash-separated keys.
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Key prefix for every object that is served publicly.
const publicPrefix = "public/"

// BlogImageKey returns a fresh key for an image that belongs to a blog.
// prefix tells cover images apart from images embedded in the content.
func BlogImageKey(blogID, prefix string) string {
	return publicPrefix + "blogs/" + blogID + "/" + prefix + "_" + token() + ".jpg"
}

// AvatarKey returns a fresh key for a user's avatar.
func AvatarKey(userID string) string {
	return publicPrefix + "users/" + userID + "/user_" + token() + ".jpg"
}

// PublicURL joins the CDN base URL and key. An empty base yields a
// site-relative path.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL is the inverse of PublicURL. It reports false when url was not
// built from base.
func KeyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if !strings.HasPrefix(key, publicPrefix) {
		return "", false
	}
	return key, true
}

func token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
