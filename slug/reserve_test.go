package slug

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestReserver(t *testing.T, ttl time.Duration) (*RedisReserver, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	r, err := NewRedisReserver("redis://"+s.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, s
}

func TestNewRedisReserverBadURL(t *testing.T) {
	_, err := NewRedisReserver("not a url", time.Second)
	assert.Error(t, err)
}

func TestRedisReserverExclusive(t *testing.T) {
	r, _ := setupTestReserver(t, time.Minute)
	ctx := context.Background()

	ok, err := r.Reserve(ctx, "hello", "blog-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Reserve(ctx, "hello", "blog-b")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not get the reservation")

	ok, err = r.Reserve(ctx, "hello", "blog-a")
	require.NoError(t, err)
	assert.True(t, ok, "reservation should be re-entrant for its holder")
}

func TestRedisReserverExpires(t *testing.T) {
	r, s := setupTestReserver(t, 10*time.Second)
	ctx := context.Background()

	ok, err := r.Reserve(ctx, "hello", "blog-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, s.Exists("slug:reserve:hello"))

	s.FastForward(11 * time.Second)

	ok, err = r.Reserve(ctx, "hello", "blog-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisReserverWithNegotiator(t *testing.T) {
	r, _ := setupTestReserver(t, time.Minute)
	ctx := context.Background()
	idx := newMemIndex()

	first := NewNegotiator(idx, WithReserver(r))
	second := NewNegotiator(idx, WithReserver(r))

	a, err := first.Negotiate(ctx, "Same Title", "blog-a")
	require.NoError(t, err)
	b, err := second.Negotiate(ctx, "Same Title", "blog-b")
	require.NoError(t, err)

	assert.Equal(t, "same-title", a)
	assert.Equal(t, "same-title-1", b)
}

func TestRedisReserverDefaultTTL(t *testing.T) {
	r := NewRedisReserverWithClient(nil, 0)
	assert.Equal(t, DefaultReservationTTL, r.ttl)
}
