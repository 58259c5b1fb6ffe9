package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutExistsDelete(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(filepath.Join(t.TempDir(), "media"))
	require.NoError(t, err)

	key := "public/blogs/b1/cover_abc.jpg"
	require.NoError(t, l.Put(ctx, key, strings.NewReader("jpeg-bytes"), 10, "image/jpeg"))

	ok, err := l.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(l.Dir(), "public", "blogs", "b1", "cover_abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, l.Delete(ctx, key))
	ok, err = l.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, l.Delete(ctx, key), "deleting a missing key should succeed")
}

func TestLocalRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../escape", "public/../../escape", "public//double"} {
		err := l.Put(ctx, key, strings.NewReader("x"), 1, "text/plain")
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestKeys(t *testing.T) {
	k := BlogImageKey("b1", "cover")
	assert.True(t, strings.HasPrefix(k, "public/blogs/b1/cover_"), k)
	assert.True(t, strings.HasSuffix(k, ".jpg"), k)
	assert.NotEqual(t, k, BlogImageKey("b1", "cover"), "keys should be unique")

	a := AvatarKey("u1")
	assert.True(t, strings.HasPrefix(a, "public/users/u1/user_"), a)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/public/users/u1/user_x.jpg",
		PublicURL("https://cdn.example.com/", "public/users/u1/user_x.jpg"))
	assert.Equal(t, "/public/users/u1/user_x.jpg", PublicURL("", "public/users/u1/user_x.jpg"))

	key, ok := KeyFromURL("https://cdn.example.com", "https://cdn.example.com/public/users/u1/user_x.jpg")
	assert.True(t, ok)
	assert.Equal(t, "public/users/u1/user_x.jpg", key)

	_, ok = KeyFromURL("https://cdn.example.com", "https://elsewhere.com/public/x.jpg")
	assert.False(t, ok)
}
