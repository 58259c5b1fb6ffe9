package views

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	devtoolkit "github.com/ankushjain358/dev-toolkit"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	return sb.String()
}

var testCfg = devtoolkit.SiteConfig{Name: "Dev Toolkit", URL: "https://example.com", Description: "Notes"}

func TestHomeEscapesTitles(t *testing.T) {
	v := Default(testCfg)
	blogs := []devtoolkit.Blog{{
		Title:       `<script>alert(1)</script>`,
		Slug:        "x",
		State:       devtoolkit.StatePublished,
		PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Tags:        []devtoolkit.Tag{{Name: "Go", Slug: "go"}},
	}}
	out := render(t, v.Home(blogs, "", []devtoolkit.Tag{{Name: "Go", Slug: "go"}}, testCfg.URL))

	assert.NotContains(t, out, `<script>alert(1)</script>`)
	assert.Contains(t, out, `&lt;script&gt;`)
	assert.Contains(t, out, `href="/blog/x/"`)
	assert.Contains(t, out, `href="/tag/go/"`)
	assert.Contains(t, out, `Mar 1, 2024`)
	assert.Contains(t, out, `application/ld+json`)
}

func TestPostRendersContentHTMLAndRelated(t *testing.T) {
	v := Default(testCfg)
	blog := devtoolkit.Blog{Title: "Hello", Slug: "hello", ContentHTML: "<p>Body</p>", State: devtoolkit.StatePublished}
	related := []devtoolkit.Blog{{Title: "Other", Slug: "other"}}
	out := render(t, v.Post(blog, related, testCfg.URL))

	assert.Contains(t, out, "<p>Body</p>")
	assert.Contains(t, out, "Related")
	assert.Contains(t, out, `href="/blog/other/"`)
	assert.Contains(t, out, `<link rel="canonical" href="https://example.com/blog/hello/">`)
}

func TestEditorCarriesCSRFAndAutosave(t *testing.T) {
	v := Default(testCfg)
	mc := devtoolkit.MemberContext{
		User:      devtoolkit.User{ID: "u1", Email: "a@example.com"},
		CSRFToken: "tok",
		Flashes:   []devtoolkit.Flash{{Kind: devtoolkit.FlashError, Message: "Title is required"}},
	}
	out := render(t, v.Editor(mc, devtoolkit.Blog{ID: "b1", Title: "T", Content: "a < b"}))

	assert.Contains(t, out, `hx-post="/me/blogs/b1/autosave/"`)
	assert.Contains(t, out, `name="_csrf" value="tok"`)
	assert.Contains(t, out, `a &lt; b`)
	assert.Contains(t, out, `Title is required`)
	assert.Contains(t, out, `>Publish<`)
}

func TestAutosaveStatus(t *testing.T) {
	out := render(t, autosaveStatus("Saved <now>"))
	assert.Equal(t, `<span class="autosave-status">Saved &lt;now&gt;</span>`, out)
}

func TestSignInShowsError(t *testing.T) {
	v := Default(testCfg)
	assert.Contains(t, render(t, v.SignIn(true, "tok")), "Sign-in failed")
	assert.NotContains(t, render(t, v.SignIn(false, "tok")), "Sign-in failed")
}
