package devtoolkit

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// SplitTagNames splits a comma separated tag field.
func SplitTagNames(field string) []string {
	parts := strings.Split(field, ",")
	out := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FilterRelated returns blogs that share at least one tag with current.
func FilterRelated(current Blog, blogs []Blog) []Blog {
	tagSet := make(map[string]struct{}, len(current.Tags))
	for _, t := range current.Tags {
		tagSet[t.Slug] = struct{}{}
	}
	var related []Blog
	for _, b := range blogs {
		if b.ID == current.ID {
			continue
		}
		for _, t := range b.Tags {
			if _, ok := tagSet[t.Slug]; ok {
				related = append(related, b)
				break
			}
		}
	}
	return related
}

// JoinTagNames joins tag names with ", ".
func JoinTagNames(tags []Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(blog Blog, cfg SiteConfig) string {
	blogURL := BuildURL(cfg.URL, "blog", blog.Slug)
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "BlogPosting",
		"headline":    blog.Title,
		"description": blog.Summary,
		"url":         blogURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   blogURL,
		},
	}
	if !blog.PublishedAt.IsZero() {
		data["datePublished"] = blog.PublishedAt.Format(time.RFC3339)
	}
	if !blog.UpdatedAt.IsZero() {
		data["dateModified"] = blog.UpdatedAt.Format(time.RFC3339)
	}
	if blog.CoverImage != "" {
		data["image"] = blog.CoverImage
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if len(blog.Tags) > 0 {
		data["keywords"] = JoinTagNames(blog.Tags)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
