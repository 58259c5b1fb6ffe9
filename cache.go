package devtoolkit

import (
	"context"
	"sync"
	"time"
)

// publishedSource is what BlogCache reads through to.
type publishedSource interface {
	ListPublishedBlogs(ctx context.Context) ([]Blog, error)
	ListPublishedTags(ctx context.Context) ([]Tag, error)
}

// BlogCache is an in-memory cache of published blogs and their tags with TTL.
type BlogCache struct {
	mu      sync.RWMutex
	blogs   []Blog
	tags    []Tag
	fetched time.Time
	ttl     time.Duration
	src     publishedSource
}

// NewBlogCache creates a BlogCache backed by src.
func NewBlogCache(src publishedSource, ttl time.Duration) *BlogCache {
	return &BlogCache{src: src, ttl: ttl}
}

func (c *BlogCache) valid() bool {
	return c.blogs != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *BlogCache) Invalidate() {
	c.mu.Lock()
	c.blogs = nil
	c.tags = nil
	c.mu.Unlock()
}

func (c *BlogCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	blogs, err := c.src.ListPublishedBlogs(ctx)
	if err != nil {
		return err
	}
	tags, err := c.src.ListPublishedTags(ctx)
	if err != nil {
		return err
	}
	if blogs == nil {
		blogs = []Blog{}
	}
	c.blogs = blogs
	c.tags = tags
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached blogs and tags after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *BlogCache) ensureLoaded(ctx context.Context) ([]Blog, []Tag, error) {
	c.mu.RLock()
	if c.valid() {
		blogs, tags := c.blogs, c.tags
		c.mu.RUnlock()
		return blogs, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.blogs, c.tags, nil
}

// ListPublished returns published blogs, optionally filtered by tag slug.
func (c *BlogCache) ListPublished(ctx context.Context, tag string) ([]Blog, error) {
	blogs, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return blogs, nil
	}
	var filtered []Blog
	for _, b := range blogs {
		for _, t := range b.Tags {
			if t.Slug == tag {
				filtered = append(filtered, b)
				break
			}
		}
	}
	return filtered, nil
}

// ListTags returns the tags used by published blogs.
func (c *BlogCache) ListTags(ctx context.Context) ([]Tag, error) {
	_, tags, err := c.ensureLoaded(ctx)
	return tags, err
}

// GetPublished returns a single published blog by slug from the cache.
func (c *BlogCache) GetPublished(ctx context.Context, slug string) (Blog, error) {
	blogs, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return Blog{}, err
	}
	for _, b := range blogs {
		if b.Slug == slug {
			return b, nil
		}
	}
	return Blog{}, ErrNotFound
}
