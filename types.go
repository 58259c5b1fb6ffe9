package devtoolkit

import "time"

// BlogState is the publication state of a blog.
type BlogState string

const (
	StateDraft     BlogState = "DRAFT"
	StatePublished BlogState = "PUBLISHED"
)

// Blog is a post written by a member. Content is the Markdown source kept by
// the editor; ContentHTML is rendered from it on every save.
type Blog struct {
	ID          string
	OwnerID     string
	Title       string
	Slug        string
	State       BlogState
	Content     string
	ContentHTML string
	Summary     string
	CoverImage  string
	Tags        []Tag
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt time.Time
}

// Published reports whether the blog is visible to guests.
func (b Blog) Published() bool { return b.State == StatePublished }

// Link returns the site-relative URL of the blog.
func (b Blog) Link() string { return "/blog/" + b.Slug + "/" }

// TagSlugs returns the slugs of the blog's tags.
func (b Blog) TagSlugs() []string {
	out := make([]string, len(b.Tags))
	for i, t := range b.Tags {
		out[i] = t.Slug
	}
	return out
}

// Tag is a label attached to a blog.
type Tag struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TagReference links a tag slug to the record that carries it. Ref has the
// form "BLOG#<id>".
type TagReference struct {
	ID   string
	Slug string
	Name string
	Ref  string
}

// BlogRef returns the tag reference key of a blog.
func BlogRef(id string) string { return "BLOG#" + id }

// BlogInput is what the editor submits on save.
type BlogInput struct {
	Title   string
	Content string
}

// Profile is the public profile of a member.
type Profile struct {
	UserID      string
	DisplayName string
	Bio         string
	AvatarURL   string
	Location    string
	Website     string
	TwitterURL  string
	LinkedinURL string
	GithubURL   string
	UpdatedAt   time.Time
}

// User is the member attached to the current session.
type User struct {
	ID    string
	Email string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}
