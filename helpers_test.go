package devtoolkit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"blog", "hello"}, "https://example.com/blog/hello/"},
		{"https://example.com/sub/", []string{"tag", "go"}, "https://example.com/sub/tag/go/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %q) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}

func TestSplitTagNames(t *testing.T) {
	got := SplitTagNames(" Go, ,Web Dev ,")
	if strings.Join(got, "|") != "Go|Web Dev" {
		t.Errorf("unexpected split: %q", got)
	}
	if len(SplitTagNames("")) != 0 {
		t.Error("empty field must yield no names")
	}
}

func TestFilterRelated(t *testing.T) {
	goTag := Tag{Name: "Go", Slug: "go"}
	current := Blog{ID: "1", Tags: []Tag{goTag}}
	blogs := []Blog{
		current,
		{ID: "2", Tags: []Tag{goTag}},
		{ID: "3", Tags: []Tag{{Name: "Rust", Slug: "rust"}}},
		{ID: "4"},
	}
	related := FilterRelated(current, blogs)
	if len(related) != 1 || related[0].ID != "2" {
		t.Errorf("unexpected related: %v", blogIDs(related))
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	b := Blog{
		Title:       "Hello",
		Slug:        "hello",
		Summary:     "Intro",
		Tags:        []Tag{{Name: "Go", Slug: "go"}, {Name: "Web", Slug: "web"}},
		PublishedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(BlogPostingJsonLD(b, SiteConfig{Name: "Site", URL: "https://example.com"})), &data); err != nil {
		t.Fatalf("invalid JSON-LD: %v", err)
	}
	if data["url"] != "https://example.com/blog/hello/" {
		t.Errorf("url = %v", data["url"])
	}
	if data["keywords"] != "Go, Web" {
		t.Errorf("keywords = %v", data["keywords"])
	}
	if data["datePublished"] != "2024-03-01T09:00:00Z" {
		t.Errorf("datePublished = %v", data["datePublished"])
	}
}

func TestRSSFeed(t *testing.T) {
	cfg := SiteConfig{Name: "Site", URL: "https://example.com", Description: "d"}
	feed := rssFeed(cfg, []Blog{
		{Title: "New", Slug: "new", PublishedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Tags: []Tag{{Name: "Go", Slug: "go"}}},
		{Title: "Old", Slug: "old", PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	})
	if len(feed.Channel.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(feed.Channel.Items))
	}
	item := feed.Channel.Items[0]
	if item.Link != "https://example.com/blog/new/" || item.GUID != item.Link {
		t.Errorf("unexpected item: %+v", item)
	}
	if len(item.Categories) != 1 || item.Categories[0] != "Go" {
		t.Errorf("unexpected categories: %v", item.Categories)
	}
	if !strings.HasPrefix(feed.Channel.LastBuildDate, "Sat, 02 Mar 2024") {
		t.Errorf("lastBuildDate = %q", feed.Channel.LastBuildDate)
	}
}

func TestSitemapFor(t *testing.T) {
	sm := sitemapFor("https://example.com",
		[]Blog{{Slug: "a", UpdatedAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)}},
		[]Tag{{Name: "Go", Slug: "go"}})
	if len(sm.URLs) != 3 {
		t.Fatalf("expected 3 URLs, got %d", len(sm.URLs))
	}
	if sm.URLs[1].LastMod != "2024-03-05" {
		t.Errorf("lastmod = %q", sm.URLs[1].LastMod)
	}
	if sm.URLs[2].Loc != "https://example.com/tag/go/" {
		t.Errorf("tag loc = %q", sm.URLs[2].Loc)
	}
}

func TestNoticeBoard(t *testing.T) {
	n := newNoticeBoard()
	n.add("u1", "first")
	n.add("u1", "second")
	n.add("u2", "other")

	if got := n.take("u1"); len(got) != 2 || got[0] != "first" {
		t.Errorf("unexpected notices: %q", got)
	}
	if got := n.take("u1"); len(got) != 0 {
		t.Errorf("notices must be taken once, got %q", got)
	}
	if got := n.take("u2"); len(got) != 1 {
		t.Errorf("notices are per user, got %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := userMessage(invalid("title", "Title is required")); got != "Title is required" {
		t.Errorf("validation message = %q", got)
	}
	if got := userMessage(ErrNotFound); got != "Blog not found" {
		t.Errorf("not found message = %q", got)
	}
	if got := userMessage(errTest("boom")); strings.Contains(got, "boom") {
		t.Errorf("internal errors must not leak: %q", got)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
