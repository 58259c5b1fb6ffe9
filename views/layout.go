package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	devtoolkit "github.com/ankushjain358/dev-toolkit"
)

// layout wraps body in the site shell with head metadata. jsonLD is
// emitted as a structured data block when not empty.
func layout(cfg devtoolkit.SiteConfig, meta devtoolkit.PageMeta, jsonLD string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := cfg.Name
		if meta.Title != "" {
			title = meta.Title + " | " + cfg.Name
		}
		desc := meta.Description
		if desc == "" {
			desc = cfg.Description
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}

		p := &printer{w: w}
		p.s(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		p.s(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.f(`<title>%s</title>`, esc(title))
		p.f(`<meta name="description" content="%s">`, esc(desc))
		p.f(`<meta property="og:title" content="%s">`, esc(title))
		p.f(`<meta property="og:type" content="%s">`, esc(ogType))
		if meta.URL != "" {
			p.f(`<link rel="canonical" href="%s"><meta property="og:url" content="%s">`, esc(meta.URL), esc(meta.URL))
		}
		p.f(`<link rel="alternate" type="application/rss+xml" title="%s" href="/feed.xml">`, esc(cfg.Name))
		p.s(`<link rel="icon" href="/favicon.svg"><link rel="stylesheet" href="/static/app.css">`)
		p.s(`<script src="/static/htmx.min.js" defer></script>`)
		if jsonLD != "" {
			// JSON from encoding/json escapes <, > and & so it cannot close the script.
			p.f(`<script type="application/ld+json">%s</script>`, jsonLD)
		}
		p.s(`</head><body class="bg-stone-50 text-ink">`)
		p.f(`<header class="border-b border-ink"><nav class="mx-auto flex max-w-3xl items-center justify-between p-4"><a href="/" class="font-bold">%s</a><a href="/me/">Write</a></nav></header>`, esc(cfg.Name))
		p.s(`<main class="mx-auto max-w-3xl p-4">`)
		if p.err != nil {
			return p.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		p.s(`</main></body></html>`)
		return p.err
	})
}

// memberLayout is the shell of every page under /me.
func memberLayout(cfg devtoolkit.SiteConfig, mc devtoolkit.MemberContext, title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.s(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		p.s(`<meta name="viewport" content="width=device-width, initial-scale=1"><meta name="robots" content="noindex">`)
		p.f(`<title>%s | %s</title>`, esc(title), esc(cfg.Name))
		p.s(`<link rel="stylesheet" href="/static/app.css"><script src="/static/htmx.min.js" defer></script>`)
		p.f(`</head><body class="bg-stone-50 text-ink" hx-headers='{"X-CSRF-Token": "%s"}'>`, esc(mc.CSRFToken))
		p.s(`<header class="border-b border-ink"><nav class="mx-auto flex max-w-4xl items-center gap-4 p-4">`)
		p.f(`<a href="/" class="font-bold">%s</a>`, esc(cfg.Name))
		for _, l := range []struct{ href, label string }{
			{"/me/", "Dashboard"},
			{"/me/blogs/", "Blogs"},
			{"/me/notes/", "Notes"},
			{"/me/bookmarks/", "Bookmarks"},
			{"/me/boards/", "Boards"},
			{"/me/profile/", "Profile"},
		} {
			p.f(`<a href="%s">%s</a>`, l.href, l.label)
		}
		p.f(`<form method="post" action="/auth/logout/" class="ml-auto"><input type="hidden" name="_csrf" value="%s"><button type="submit">Sign out (%s)</button></form>`,
			esc(mc.CSRFToken), esc(mc.User.Email))
		p.s(`</nav></header><main class="mx-auto max-w-4xl p-4">`)
		for _, f := range mc.Flashes {
			p.f(`<div class="flash flash-%s" role="status">%s</div>`, esc(string(f.Kind)), esc(f.Message))
		}
		p.f(`<h1 class="mb-4 text-2xl font-bold">%s</h1>`, esc(title))
		if p.err != nil {
			return p.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		p.s(`</main></body></html>`)
		return p.err
	})
}

func csrfField(token string) string {
	return `<input type="hidden" name="_csrf" value="` + esc(token) + `">`
}
