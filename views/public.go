package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	devtoolkit "github.com/ankushjain358/dev-toolkit"
)

// Default returns plain server-rendered views for every page.
func Default(cfg devtoolkit.SiteConfig) devtoolkit.ViewFuncs {
	return devtoolkit.ViewFuncs{
		Home: func(blogs []devtoolkit.Blog, activeTag string, tags []devtoolkit.Tag, siteURL string) templ.Component {
			meta := devtoolkit.PageMeta{URL: devtoolkit.BuildURL(siteURL), OGType: "website"}
			return layout(cfg, meta, devtoolkit.WebsiteJsonLD(cfg), blogSection(blogs, activeTag, tags))
		},
		BlogSection: blogSection,
		Post: func(blog devtoolkit.Blog, related []devtoolkit.Blog, siteURL string) templ.Component {
			meta := devtoolkit.PageMeta{
				Title:       blog.Title,
				Description: blog.Summary,
				URL:         devtoolkit.BuildURL(siteURL, "blog", blog.Slug),
				OGType:      "article",
			}
			return layout(cfg, meta, devtoolkit.BlogPostingJsonLD(blog, cfg), post(blog, related))
		},
		TagPage: func(tag devtoolkit.Tag, blogs []devtoolkit.Blog, siteURL string) templ.Component {
			meta := devtoolkit.PageMeta{
				Title:  "#" + tag.Name,
				URL:    devtoolkit.BuildURL(siteURL, "tag", tag.Slug),
				OGType: "website",
			}
			return layout(cfg, meta, "", tagPage(tag, blogs))
		},
		SignIn: func(showError bool, csrfToken string) templ.Component {
			return layout(cfg, devtoolkit.PageMeta{Title: "Sign in"}, "", signIn(showError, csrfToken))
		},

		Dashboard: func(mc devtoolkit.MemberContext, blogs []devtoolkit.Blog) templ.Component {
			return memberLayout(cfg, mc, "Dashboard", dashboard(blogs))
		},
		MyBlogs: func(mc devtoolkit.MemberContext, blogs []devtoolkit.Blog) templ.Component {
			return memberLayout(cfg, mc, "My blogs", myBlogs(mc, blogs))
		},
		Editor: func(mc devtoolkit.MemberContext, blog devtoolkit.Blog) templ.Component {
			return memberLayout(cfg, mc, "Edit blog", editor(mc, blog))
		},
		AutosaveStatus: autosaveStatus,
		ProfileForm: func(mc devtoolkit.MemberContext, p devtoolkit.Profile) templ.Component {
			return memberLayout(cfg, mc, "Profile", profileForm(mc, p))
		},
		Stub: func(mc devtoolkit.MemberContext, title string) templ.Component {
			return memberLayout(cfg, mc, title, templ.Raw(`<p>Coming soon.</p>`))
		},

		NotFound: func() templ.Component {
			return layout(cfg, devtoolkit.PageMeta{Title: "Not found"}, "",
				templ.Raw(`<h1 class="text-2xl font-bold">Page not found</h1><p><a href="/">Back to the front page</a></p>`))
		},
		ServerError: func() templ.Component {
			return layout(cfg, devtoolkit.PageMeta{Title: "Error"}, "",
				templ.Raw(`<h1 class="text-2xl font-bold">Something went wrong</h1><p>Please try again in a moment.</p>`))
		},
	}
}

func blogSection(blogs []devtoolkit.Blog, activeTag string, tags []devtoolkit.Tag) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.s(`<section id="blog-section">`)
		if len(tags) > 0 {
			p.s(`<nav class="mb-6 flex flex-wrap gap-2">`)
			p.f(`<a href="/" hx-get="/?partial=blog" hx-target="#blog-section" hx-swap="outerHTML" class="%s">All</a>`, TagClass(activeTag == ""))
			for _, t := range tags {
				p.f(`<a href="/?tag=%s" hx-get="/?partial=blog&amp;tag=%s" hx-target="#blog-section" hx-swap="outerHTML" class="%s">%s</a>`,
					esc(PathEscape(t.Slug)), esc(PathEscape(t.Slug)), TagClass(activeTag == t.Slug), esc(t.Name))
			}
			p.s(`</nav>`)
		}
		blogList(p, blogs)
		p.s(`</section>`)
		return p.err
	})
}

func blogList(p *printer, blogs []devtoolkit.Blog) {
	if len(blogs) == 0 {
		p.s(`<p>No posts yet.</p>`)
		return
	}
	p.s(`<ul class="space-y-6">`)
	for _, b := range blogs {
		p.f(`<li><article><h2 class="text-xl font-bold"><a href="%s">%s</a></h2>`, esc(b.Link()), esc(b.Title))
		if d := FormatDate(b.PublishedAt); d != "" {
			p.f(`<time datetime="%s">%s</time>`, b.PublishedAt.Format("2006-01-02"), d)
		}
		if b.Summary != "" {
			p.f(`<p>%s</p>`, esc(b.Summary))
		}
		tagLinks(p, b.Tags)
		p.s(`</article></li>`)
	}
	p.s(`</ul>`)
}

func tagLinks(p *printer, tags []devtoolkit.Tag) {
	if len(tags) == 0 {
		return
	}
	p.s(`<p class="mt-2 flex flex-wrap gap-2">`)
	for _, t := range tags {
		p.f(`<a href="/tag/%s/" class="%s">%s</a>`, esc(PathEscape(t.Slug)), TagClass(false), esc(t.Name))
	}
	p.s(`</p>`)
}

func post(blog devtoolkit.Blog, related []devtoolkit.Blog) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.s(`<article>`)
		if blog.CoverImage != "" {
			p.f(`<img src="%s" alt="" class="mb-6 w-full" fetchpriority="high">`, esc(blog.CoverImage))
		}
		p.f(`<h1 class="text-3xl font-bold">%s</h1>`, esc(blog.Title))
		if d := FormatDate(blog.PublishedAt); d != "" {
			p.f(`<time datetime="%s">%s</time>`, blog.PublishedAt.Format("2006-01-02"), d)
		}
		tagLinks(p, blog.Tags)
		// ContentHTML is produced by the markdown renderer, which escapes input.
		p.f(`<div class="prose mt-6">%s</div>`, blog.ContentHTML)
		p.s(`</article>`)
		if len(related) > 0 {
			p.s(`<aside class="mt-10"><h2 class="text-xl font-bold">Related</h2>`)
			blogList(p, related)
			p.s(`</aside>`)
		}
		return p.err
	})
}

func tagPage(tag devtoolkit.Tag, blogs []devtoolkit.Blog) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.f(`<h1 class="mb-6 text-2xl font-bold">#%s</h1>`, esc(tag.Name))
		blogList(p, blogs)
		return p.err
	})
}

func signIn(showError bool, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.s(`<h1 class="mb-4 text-2xl font-bold">Sign in</h1>`)
		if showError {
			p.s(`<p class="flash flash-error" role="alert">Sign-in failed. Please try again.</p>`)
		}
		p.s(`<form id="signin" method="post" action="/auth/session/">`)
		p.s(csrfField(csrfToken))
		p.s(`<input type="hidden" name="id_token" id="id_token">`)
		p.s(`<input type="hidden" name="next" id="next">`)
		p.s(`<p>Continue with your account provider to sign in.</p>`)
		p.s(`<button type="submit">Continue</button></form>`)
		return p.err
	})
}
