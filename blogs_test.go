package devtoolkit

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ankushjain358/dev-toolkit/slug"
)

func newTestBlogs(t *testing.T, opts ...slug.Option) (*Blogs, *Store) {
	t.Helper()
	s := setupTestStore(t)
	n := slug.NewNegotiator(slug.ProberFunc(s.ProbeSlug), opts...)
	return newTestBlogsWith(s, n), s
}

func newTestBlogsWith(s *Store, n *slug.Negotiator) *Blogs {
	svc := NewBlogs(s, n, NewBlogCache(s, time.Minute), newLogger(io.Discard, LogConfig{}))
	var seq atomic.Int64
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.Add(time.Duration(seq.Add(1)) * time.Second) }
	return svc
}

func TestCreateAssignsSlugAndDraft(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, "u1", "  Hello, World!  ")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.Title != "Hello, World!" {
		t.Errorf("title not trimmed: %q", b.Title)
	}
	if b.Slug != "hello-world" {
		t.Errorf("expected slug hello-world, got %q", b.Slug)
	}
	if b.State != StateDraft || b.ID == "" {
		t.Errorf("unexpected blog: %+v", b)
	}
}

func TestCreateSameTitleGetsSuffixes(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()

	want := []string{"my-post", "my-post-1", "my-post-2"}
	for i, w := range want {
		b, err := svc.Create(ctx, "u1", "My Post")
		if err != nil {
			t.Fatalf("Create #%d failed: %v", i, err)
		}
		if b.Slug != w {
			t.Errorf("Create #%d: slug = %q, want %q", i, b.Slug, w)
		}
	}
}

func TestCreateRejectsInvalidTitles(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()

	for _, title := range []string{"", "   ", strings.Repeat("x", maxTitleLen+1)} {
		_, err := svc.Create(ctx, "u1", title)
		if ve, ok := IsValidation(err); !ok || ve.Field != "title" {
			t.Errorf("Create(%q): expected title validation error, got %v", title, err)
		}
	}
}

func TestCreateSymbolOnlyTitleUsesFallback(t *testing.T) {
	svc, _ := newTestBlogs(t)

	b, err := svc.Create(context.Background(), "u1", "!!!")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(b.Slug, "post-") || !slug.Valid(b.Slug) {
		t.Errorf("expected fallback slug, got %q", b.Slug)
	}
}

func TestSaveKeepsOwnSlug(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, "u1", "Go Tips")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	saved, err := svc.Save(ctx, "u1", b.ID, BlogInput{Title: "Go Tips", Content: "# Intro\n\nSome **bold** text."})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.Slug != "go-tips" {
		t.Errorf("saving with the same title must keep the slug, got %q", saved.Slug)
	}
	if !strings.Contains(saved.ContentHTML, "<strong>bold</strong>") {
		t.Errorf("content not rendered: %q", saved.ContentHTML)
	}
	if saved.Summary == "" || strings.Contains(saved.Summary, "**") {
		t.Errorf("unexpected summary: %q", saved.Summary)
	}
}

func TestSaveRenamesSlugWithTitle(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()

	other, _ := svc.Create(ctx, "u2", "Taken Title")
	b, _ := svc.Create(ctx, "u1", "Draft")

	saved, err := svc.Save(ctx, "u1", b.ID, BlogInput{Title: "Taken Title", Content: "x"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.Slug != "taken-title-1" {
		t.Errorf("expected taken-title-1, got %q (other holds %q)", saved.Slug, other.Slug)
	}
}

func TestSaveValidatesInput(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()
	b, _ := svc.Create(ctx, "u1", "Draft")

	if _, err := svc.Save(ctx, "u1", b.ID, BlogInput{Title: "Draft", Content: "  "}); err == nil {
		t.Error("expected content validation error")
	}
	if _, err := svc.Save(ctx, "u1", b.ID, BlogInput{Title: "", Content: "x"}); err == nil {
		t.Error("expected title validation error")
	}
}

func TestOtherMembersBlogIsNotFound(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()
	b, _ := svc.Create(ctx, "u1", "Mine")

	if _, err := svc.Get(ctx, "u2", b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Save(ctx, "u2", b.ID, BlogInput{Title: "Stolen", Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Save: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.TogglePublish(ctx, "u2", b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("TogglePublish: expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "u2", b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestRetryWhenConcurrentWriterTakesSlug(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	if err := s.CreateBlog(ctx, testBlog("other", "u2", "race")); err != nil {
		t.Fatalf("CreateBlog failed: %v", err)
	}

	// The first probe misses the row, as if the other writer committed
	// between probe and insert.
	var calls atomic.Int32
	prober := slug.ProberFunc(func(ctx context.Context, sl string) (string, error) {
		if calls.Add(1) == 1 {
			return "", nil
		}
		return s.ProbeSlug(ctx, sl)
	})
	svc := newTestBlogsWith(s, slug.NewNegotiator(prober))

	b, err := svc.Create(ctx, "u1", "Race")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.Slug != "race-1" {
		t.Errorf("expected race-1 after retry, got %q", b.Slug)
	}
}

func TestProbeFailureFailsClosed(t *testing.T) {
	s := setupTestStore(t)
	boom := errors.New("db down")
	prober := slug.ProberFunc(func(context.Context, string) (string, error) { return "", boom })
	svc := newTestBlogsWith(s, slug.NewNegotiator(prober))

	_, err := svc.Create(context.Background(), "u1", "Hello")
	if !errors.Is(err, slug.ErrProbe) {
		t.Fatalf("expected ErrProbe, got %v", err)
	}
	if blogs, _ := s.ListBlogsByOwner(context.Background(), "u1"); len(blogs) != 0 {
		t.Errorf("nothing must be written when the probe fails, got %d blogs", len(blogs))
	}
}

func TestTogglePublish(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()
	b, _ := svc.Create(ctx, "u1", "Publish Me")

	if _, err := svc.TogglePublish(ctx, "u1", b.ID); err == nil {
		t.Fatal("publishing an empty blog must fail")
	}
	if _, err := svc.Save(ctx, "u1", b.ID, BlogInput{Title: "Publish Me", Content: "Hello"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	pub, err := svc.TogglePublish(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("TogglePublish failed: %v", err)
	}
	if !pub.Published() || pub.PublishedAt.IsZero() {
		t.Errorf("expected published blog, got %+v", pub)
	}
	listed, err := svc.cache.ListPublished(ctx, "")
	if err != nil || len(listed) != 1 {
		t.Fatalf("published blog should be listed, got %d (%v)", len(listed), err)
	}

	draft, err := svc.TogglePublish(ctx, "u1", b.ID)
	if err != nil {
		t.Fatalf("TogglePublish failed: %v", err)
	}
	if draft.Published() || !draft.PublishedAt.IsZero() {
		t.Errorf("expected draft, got %+v", draft)
	}
	if listed, _ := svc.cache.ListPublished(ctx, ""); len(listed) != 0 {
		t.Errorf("unpublished blog must leave the listing, got %d", len(listed))
	}
}

func TestSaveTags(t *testing.T) {
	svc, s := newTestBlogs(t)
	ctx := context.Background()
	b, _ := svc.Create(ctx, "u1", "Tagged")

	got, err := svc.SaveTags(ctx, "u1", b.ID, []string{"Go", " ", "Web Dev"})
	if err != nil {
		t.Fatalf("SaveTags failed: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[1].Slug != "web-dev" {
		t.Errorf("unexpected tags: %+v", got.Tags)
	}
	refs, _ := s.TagReferences(ctx, BlogRef(b.ID))
	if len(refs) != 2 {
		t.Errorf("expected 2 tag references, got %d", len(refs))
	}

	if _, err := svc.SaveTags(ctx, "u1", b.ID, []string{"Go", "go"}); err == nil {
		t.Error("duplicate tag slugs must be rejected")
	}
	if _, err := svc.SaveTags(ctx, "u1", b.ID, []string{strings.Repeat("a", maxTagNameLen+1)}); err == nil {
		t.Error("overlong tag must be rejected")
	}
}

func TestDeleteRemovesTagReferences(t *testing.T) {
	svc, s := newTestBlogs(t)
	ctx := context.Background()
	b, _ := svc.Create(ctx, "u1", "Short Lived")
	if _, err := svc.SaveTags(ctx, "u1", b.ID, []string{"Go"}); err != nil {
		t.Fatalf("SaveTags failed: %v", err)
	}

	if err := svc.Delete(ctx, "u1", b.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if refs, _ := s.TagReferences(ctx, BlogRef(b.ID)); len(refs) != 0 {
		t.Errorf("expected tag references to be removed, got %d", len(refs))
	}
	if _, err := svc.Get(ctx, "u1", b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSetCover(t *testing.T) {
	svc, _ := newTestBlogs(t)
	ctx := context.Background()
	b, _ := svc.Create(ctx, "u1", "Covered")

	if err := svc.SetCover(ctx, "u1", b.ID, "/public/blogs/x/cover_1.jpg"); err != nil {
		t.Fatalf("SetCover failed: %v", err)
	}
	got, _ := svc.Get(ctx, "u1", b.ID)
	if got.CoverImage != "/public/blogs/x/cover_1.jpg" {
		t.Errorf("cover not stored: %q", got.CoverImage)
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		in      []string
		want    []string
		wantErr bool
	}{
		{in: nil, want: []string{}},
		{in: []string{"Go", "C++"}, want: []string{"go", "c"}},
		{in: []string{"A/B Testing"}, want: []string{"a-b-testing"}},
		{in: []string{"Go", "GO"}, wantErr: true},
		{in: []string{"!!!"}, wantErr: true},
	}
	for _, tt := range tests {
		tags, err := ParseTags(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTags(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTags(%q): %v", tt.in, err)
			continue
		}
		if len(tags) != len(tt.want) {
			t.Errorf("ParseTags(%q) = %+v, want slugs %q", tt.in, tags, tt.want)
			continue
		}
		for i := range tags {
			if tags[i].Slug != tt.want[i] {
				t.Errorf("ParseTags(%q)[%d].Slug = %q, want %q", tt.in, i, tags[i].Slug, tt.want[i])
			}
		}
	}
}
