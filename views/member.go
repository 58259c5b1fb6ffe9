package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	devtoolkit "github.com/ankushjain358/dev-toolkit"
)

func dashboard(blogs []devtoolkit.Blog) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var drafts, published int
		for _, b := range blogs {
			if b.Published() {
				published++
			} else {
				drafts++
			}
		}
		p := &printer{w: w}
		p.f(`<p>%d published, %d drafts.</p>`, published, drafts)
		p.s(`<p><a href="/me/blogs/">Manage blogs</a></p>`)
		return p.err
	})
}

func myBlogs(mc devtoolkit.MemberContext, blogs []devtoolkit.Blog) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.s(`<form method="post" action="/me/blogs/" class="mb-6 flex gap-2">`)
		p.s(csrfField(mc.CSRFToken))
		p.s(`<input type="text" name="title" placeholder="Title of your next post" required maxlength="200">`)
		p.s(`<button type="submit">New blog</button></form>`)
		if len(blogs) == 0 {
			p.s(`<p>You have not written anything yet.</p>`)
			return p.err
		}
		p.s(`<table class="w-full"><thead><tr><th>Title</th><th>State</th><th>Updated</th><th></th></tr></thead><tbody>`)
		for _, b := range blogs {
			p.f(`<tr><td><a href="/me/blogs/%s/">%s</a></td><td>%s</td><td>%s</td>`,
				esc(b.ID), esc(b.Title), StateLabel(b), FormatDate(b.UpdatedAt))
			p.f(`<td><form method="post" action="/me/blogs/%s/delete/" onsubmit="return confirm('Delete this blog?')">%s<button type="submit">Delete</button></form></td></tr>`,
				esc(b.ID), csrfField(mc.CSRFToken))
		}
		p.s(`</tbody></table>`)
		return p.err
	})
}

func editor(mc devtoolkit.MemberContext, b devtoolkit.Blog) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		base := "/me/blogs/" + esc(b.ID) + "/"
		p := &printer{w: w}
		p.f(`<p>%s`, StateLabel(b))
		if b.Published() {
			p.f(` at <a href="%s">%s</a>`, esc(b.Link()), esc(b.Link()))
		}
		p.s(`</p>`)

		p.f(`<form method="post" action="%s" hx-post="%sautosave/" hx-trigger="input delay:1s" hx-target="#autosave-status" hx-swap="innerHTML">`, base, base)
		p.s(csrfField(mc.CSRFToken))
		p.f(`<label>Title <input type="text" name="title" value="%s" required maxlength="200"></label>`, esc(b.Title))
		p.f(`<label>Content (Markdown) <textarea name="content" rows="24">%s</textarea></label>`, esc(b.Content))
		p.s(`<p id="autosave-status" aria-live="polite"></p>`)
		p.s(`<button type="submit">Save</button></form>`)

		p.f(`<form method="post" action="%sleave/">%s<button type="submit">Close without saving</button></form>`, base, csrfField(mc.CSRFToken))

		label := "Publish"
		if b.Published() {
			label = "Unpublish"
		}
		p.f(`<form method="post" action="%spublish/">%s<button type="submit">%s</button></form>`, base, csrfField(mc.CSRFToken), label)

		p.f(`<form method="post" action="%stags/">%s<label>Tags <input type="text" name="tags" value="%s" placeholder="go, web, htmx"></label><button type="submit">Save tags</button></form>`,
			base, csrfField(mc.CSRFToken), esc(devtoolkit.JoinTagNames(b.Tags)))

		if b.CoverImage != "" {
			p.f(`<img src="%s" alt="Cover" class="w-64">`, esc(b.CoverImage))
		}
		p.f(`<form method="post" action="%scover/" enctype="multipart/form-data">%s<label>Cover image <input type="file" name="image" accept="image/*"></label><button type="submit">Upload cover</button></form>`,
			base, csrfField(mc.CSRFToken))
		p.f(`<form method="post" action="%simages/" enctype="multipart/form-data">%s<label>Insert image <input type="file" name="image" accept="image/*"></label><button type="submit">Upload</button></form>`,
			base, csrfField(mc.CSRFToken))
		return p.err
	})
}

func autosaveStatus(status string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<span class="autosave-status">`+esc(status)+`</span>`)
		return err
	})
}

func profileForm(mc devtoolkit.MemberContext, pr devtoolkit.Profile) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		if pr.AvatarURL != "" {
			p.f(`<img src="%s" alt="Avatar" class="h-24 w-24 rounded-full">`, esc(pr.AvatarURL))
		}
		p.f(`<form method="post" action="/me/profile/avatar/" enctype="multipart/form-data">%s<label>Avatar <input type="file" name="avatar" accept="image/*"></label><button type="submit">Upload</button></form>`,
			csrfField(mc.CSRFToken))

		p.s(`<form method="post" action="/me/profile/">`)
		p.s(csrfField(mc.CSRFToken))
		for _, f := range []struct{ name, label, value, kind string }{
			{"display_name", "Display name", pr.DisplayName, "text"},
			{"location", "Location", pr.Location, "text"},
			{"website", "Website", pr.Website, "url"},
			{"twitter_url", "Twitter", pr.TwitterURL, "url"},
			{"linkedin_url", "LinkedIn", pr.LinkedinURL, "url"},
			{"github_url", "GitHub", pr.GithubURL, "url"},
		} {
			p.f(`<label>%s <input type="%s" name="%s" value="%s"></label>`, f.label, f.kind, f.name, esc(f.value))
		}
		p.f(`<label>Bio <textarea name="bio" rows="4" maxlength="500">%s</textarea></label>`, esc(pr.Bio))
		p.s(`<button type="submit">Save profile</button></form>`)
		return p.err
	})
}
