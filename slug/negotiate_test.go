package slug

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memIndex is an in-memory slug index: slug -> record ID.
type memIndex struct {
	mu     sync.Mutex
	owners map[string]string
	probes []string
}

func newMemIndex(pairs ...string) *memIndex {
	m := &memIndex{owners: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		m.owners[pairs[i]] = pairs[i+1]
	}
	return m
}

func (m *memIndex) Probe(_ context.Context, s string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, s)
	return m.owners[s], nil
}

func (m *memIndex) put(s, id string) {
	m.mu.Lock()
	m.owners[s] = id
	m.mu.Unlock()
}

type fakeReserver struct {
	held map[string]string
	err  error
}

func (f *fakeReserver) Reserve(_ context.Context, s, holder string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if cur, ok := f.held[s]; ok && cur != holder {
		return false, nil
	}
	f.held[s] = holder
	return true, nil
}

func TestNegotiateFreeSlug(t *testing.T) {
	idx := newMemIndex()
	n := NewNegotiator(idx)

	got, err := n.Negotiate(context.Background(), "Hello, World!", "")
	require.NoError(t, err)
	assert.Equal(t, "hello-world", got)
}

func TestNegotiateSuffixesForOtherRecord(t *testing.T) {
	idx := newMemIndex("hello-world", "blog-a")
	n := NewNegotiator(idx)

	got, err := n.Negotiate(context.Background(), "Hello, World!", "blog-b")
	require.NoError(t, err)
	assert.Equal(t, "hello-world-1", got)
}

func TestNegotiateSkipsSeveralTaken(t *testing.T) {
	idx := newMemIndex(
		"hello-world", "a",
		"hello-world-1", "b",
		"hello-world-2", "c",
	)
	n := NewNegotiator(idx)

	got, err := n.Negotiate(context.Background(), "Hello World", "")
	require.NoError(t, err)
	assert.Equal(t, "hello-world-3", got)
	assert.Equal(t, []string{"hello-world", "hello-world-1", "hello-world-2", "hello-world-3"}, idx.probes)
}

func TestNegotiateKeepsOwnSlug(t *testing.T) {
	idx := newMemIndex("hello-world", "blog-a")
	n := NewNegotiator(idx)

	for i := 0; i < 3; i++ {
		got, err := n.Negotiate(context.Background(), "Hello, World!", "blog-a")
		require.NoError(t, err)
		assert.Equal(t, "hello-world", got)
	}
}

func TestNegotiateKeepsOwnSuffixedSlug(t *testing.T) {
	idx := newMemIndex("hello-world", "blog-a", "hello-world-1", "blog-b")
	n := NewNegotiator(idx)

	got, err := n.Negotiate(context.Background(), "Hello, World!", "blog-b")
	require.NoError(t, err)
	assert.Equal(t, "hello-world-1", got)
}

func TestNegotiateResultIsOwnedAfterWrite(t *testing.T) {
	idx := newMemIndex()
	n := NewNegotiator(idx)
	titles := []string{"Go Tips", "Go Tips", "go tips!", "Go: Tips", "Other"}

	for i, title := range titles {
		id := "blog-" + string(rune('a'+i))
		got, err := n.Negotiate(context.Background(), title, "")
		require.NoError(t, err)
		owner, _ := idx.Probe(context.Background(), got)
		require.Empty(t, owner, "negotiated slug %q already held", got)
		idx.put(got, id)

		owner, _ = idx.Probe(context.Background(), got)
		assert.Equal(t, id, owner)
	}
}

func TestNegotiateEmptyTitleUsesFallback(t *testing.T) {
	idx := newMemIndex("post-fixed", "other")
	n := NewNegotiator(idx, WithFallback(func() string { return "post-fixed" }))

	got, err := n.Negotiate(context.Background(), "!!!", "")
	require.NoError(t, err)
	assert.Equal(t, "post-fixed-1", got)
}

func TestNegotiateDefaultFallbackToken(t *testing.T) {
	n := NewNegotiator(newMemIndex())

	got, err := n.Negotiate(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "post-"))
	assert.True(t, Valid(got), "fallback %q should be a valid slug", got)
}

func TestNegotiateFailsClosedOnProbeError(t *testing.T) {
	boom := errors.New("index unavailable")
	p := ProberFunc(func(context.Context, string) (string, error) { return "", boom })
	n := NewNegotiator(p)

	_, err := n.Negotiate(context.Background(), "Hello", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProbe)
	assert.ErrorIs(t, err, boom)
}

func TestNegotiateFailOpenTreatsErrorAsFree(t *testing.T) {
	p := ProberFunc(func(context.Context, string) (string, error) { return "", errors.New("down") })
	n := NewNegotiator(p, WithFailOpen(true))

	got, err := n.Negotiate(context.Background(), "Hello", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestNegotiateMaxAttempts(t *testing.T) {
	p := ProberFunc(func(context.Context, string) (string, error) { return "someone", nil })
	n := NewNegotiator(p, WithMaxAttempts(5))

	_, err := n.Negotiate(context.Background(), "Hello", "")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestNegotiateStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := ProberFunc(func(context.Context, string) (string, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return "someone", nil
	})
	n := NewNegotiator(p)

	_, err := n.Negotiate(ctx, "Hello", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}

func TestNegotiateReservationConflictAdvances(t *testing.T) {
	res := &fakeReserver{held: map[string]string{"hello": "other-session"}}
	n := NewNegotiator(newMemIndex(), WithReserver(res))

	got, err := n.Negotiate(context.Background(), "Hello", "blog-a")
	require.NoError(t, err)
	assert.Equal(t, "hello-1", got)
	assert.Equal(t, "blog-a", res.held["hello-1"])
}

func TestNegotiateReservationIsReentrant(t *testing.T) {
	res := &fakeReserver{held: map[string]string{"hello": "blog-a"}}
	n := NewNegotiator(newMemIndex(), WithReserver(res))

	got, err := n.Negotiate(context.Background(), "Hello", "blog-a")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestNegotiateReservationErrorFailsClosed(t *testing.T) {
	res := &fakeReserver{held: map[string]string{}, err: errors.New("redis down")}
	n := NewNegotiator(newMemIndex(), WithReserver(res))

	_, err := n.Negotiate(context.Background(), "Hello", "blog-a")
	assert.ErrorIs(t, err, ErrProbe)
}
