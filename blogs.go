package devtoolkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ankushjain358/dev-toolkit/markdown"
	"github.com/ankushjain358/dev-toolkit/slug"
)

const (
	maxTitleLen   = 200
	maxTagNameLen = 50
	summaryLen    = 200

	// maxSlugRetries bounds how often a write that lost a slug race is
	// renegotiated before the conflict is returned.
	maxSlugRetries = 3
)

// Blogs implements the blog lifecycle for members: create, save, tag,
// publish and delete.
type Blogs struct {
	store      *Store
	negotiator *slug.Negotiator
	cache      *BlogCache
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewBlogs creates the blog service.
func NewBlogs(store *Store, negotiator *slug.Negotiator, cache *BlogCache, logger *slog.Logger) *Blogs {
	return &Blogs{
		store:      store,
		negotiator: negotiator,
		cache:      cache,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", invalid("title", fmt.Sprintf("Title must be %d characters or fewer", maxTitleLen))
	}
	return title, nil
}

// validateInput checks an editor submission and returns the trimmed title.
func validateInput(in BlogInput) (string, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Content) == "" {
		return "", invalid("content", "Content is required")
	}
	return title, nil
}

// NewTag validates a tag name and derives its slug.
func NewTag(name string) (Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, invalid("tags", "Tag name is required")
	}
	if utf8.RuneCountInString(name) > maxTagNameLen {
		return Tag{}, invalid("tags", fmt.Sprintf("Tag %q must be %d characters or fewer", name, maxTagNameLen))
	}
	s := slug.Normalize(name)
	if s == "" {
		return Tag{}, invalid("tags", fmt.Sprintf("Tag %q needs at least one letter or digit", name))
	}
	return Tag{Name: name, Slug: s}, nil
}

// ParseTags validates names in order. Blank names are skipped; two names
// with the same slug are rejected.
func ParseTags(names []string) ([]Tag, error) {
	tags := make([]Tag, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		t, err := NewTag(n)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[t.Slug]; ok {
			return nil, invalid("tags", fmt.Sprintf("Tag %q is already added", t.Name))
		}
		seen[t.Slug] = struct{}{}
		tags = append(tags, t)
	}
	return tags, nil
}

// writeWithSlug negotiates a slug for title and hands it to write. When the
// unique index rejects the slug because a concurrent writer took it first,
// the slug is renegotiated.
func (s *Blogs) writeWithSlug(ctx context.Context, title, selfID string, write func(slug string) error) (string, error) {
	for attempt := 0; ; attempt++ {
		candidate, err := s.negotiator.Negotiate(ctx, title, selfID)
		if err != nil {
			return "", fmt.Errorf("negotiate slug: %w", err)
		}
		err = write(candidate)
		if !errors.Is(err, ErrDuplicateSlug) {
			return candidate, err
		}
		if attempt >= maxSlugRetries {
			return "", err
		}
		s.logger.Warn("Blogs: slug taken by a concurrent write, renegotiating",
			"slug", candidate,
			"blog_id", selfID,
			"attempt", attempt+1)
	}
}

// Create starts a new draft for ownerID.
func (s *Blogs) Create(ctx context.Context, ownerID, title string) (Blog, error) {
	title, err := validateTitle(title)
	if err != nil {
		return Blog{}, err
	}
	now := s.now()
	b := Blog{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Title:     title,
		State:     StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// The id exists before the first write so that a later save of this
	// blog recognises its own slug and reservation.
	b.Slug, err = s.writeWithSlug(ctx, title, b.ID, func(candidate string) error {
		b.Slug = candidate
		return s.store.CreateBlog(ctx, b)
	})
	if err != nil {
		return Blog{}, fmt.Errorf("create blog: %w", err)
	}
	s.logger.Info("Blogs: created draft",
		"blog_id", b.ID,
		"owner_id", ownerID,
		"slug", b.Slug)
	return b, nil
}

// Get returns a blog of ownerID. Blogs of other members are reported as
// ErrNotFound.
func (s *Blogs) Get(ctx context.Context, ownerID, id string) (Blog, error) {
	b, err := s.store.GetBlog(ctx, id)
	if err != nil {
		return Blog{}, err
	}
	if b.OwnerID != ownerID {
		return Blog{}, ErrNotFound
	}
	return b, nil
}

// List returns the blogs of ownerID.
func (s *Blogs) List(ctx context.Context, ownerID string) ([]Blog, error) {
	return s.store.ListBlogsByOwner(ctx, ownerID)
}

// Save stores an editor submission. The slug follows the title.
func (s *Blogs) Save(ctx context.Context, ownerID, id string, in BlogInput) (Blog, error) {
	title, err := validateInput(in)
	if err != nil {
		return Blog{}, err
	}
	b, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return Blog{}, err
	}

	b.Title = title
	b.Content = in.Content
	b.ContentHTML = markdown.ToHTML(in.Content)
	b.Summary = markdown.Excerpt(in.Content, summaryLen)
	b.UpdatedAt = s.now()
	b.Slug, err = s.writeWithSlug(ctx, title, id, func(candidate string) error {
		b.Slug = candidate
		return s.store.UpdateBlog(ctx, b)
	})
	if err != nil {
		return Blog{}, fmt.Errorf("save blog: %w", err)
	}
	if b.Published() {
		s.cache.Invalidate()
	}
	return b, nil
}

// TogglePublish flips a blog between DRAFT and PUBLISHED.
func (s *Blogs) TogglePublish(ctx context.Context, ownerID, id string) (Blog, error) {
	b, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return Blog{}, err
	}
	now := s.now()
	if b.Published() {
		b.State = StateDraft
		b.PublishedAt = time.Time{}
	} else {
		if strings.TrimSpace(b.Content) == "" {
			return Blog{}, invalid("content", "Add some content before publishing")
		}
		b.State = StatePublished
		b.PublishedAt = now
	}
	b.UpdatedAt = now
	if err := s.store.SetBlogState(ctx, ownerID, id, b.State, b.PublishedAt, now); err != nil {
		return Blog{}, fmt.Errorf("set blog state: %w", err)
	}
	s.cache.Invalidate()
	s.logger.Info("Blogs: state changed",
		"blog_id", id,
		"state", string(b.State))
	return b, nil
}

// SetCover sets the cover image URL of a blog.
func (s *Blogs) SetCover(ctx context.Context, ownerID, id, url string) error {
	b, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.SetBlogCover(ctx, ownerID, id, url, s.now()); err != nil {
		return err
	}
	if b.Published() {
		s.cache.Invalidate()
	}
	return nil
}

// SaveTags replaces the tags of a blog.
func (s *Blogs) SaveTags(ctx context.Context, ownerID, id string, names []string) (Blog, error) {
	tags, err := ParseTags(names)
	if err != nil {
		return Blog{}, err
	}
	b, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return Blog{}, err
	}
	now := s.now()
	if err := s.store.ReplaceBlogTags(ctx, ownerID, id, tags, now); err != nil {
		return Blog{}, fmt.Errorf("save tags: %w", err)
	}
	b.Tags = tags
	b.UpdatedAt = now
	if b.Published() {
		s.cache.Invalidate()
	}
	return b, nil
}

// Delete removes a blog. Its tag references are removed afterwards on a
// best-effort basis.
func (s *Blogs) Delete(ctx context.Context, ownerID, id string) error {
	b, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBlog(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	if err := s.store.DeleteTagReferences(ctx, BlogRef(id)); err != nil {
		s.logger.Warn("Blogs: failed to delete tag references",
			"blog_id", id,
			"error", err.Error())
	}
	if b.Published() {
		s.cache.Invalidate()
	}
	s.logger.Info("Blogs: deleted",
		"blog_id", id,
		"owner_id", ownerID)
	return nil
}
