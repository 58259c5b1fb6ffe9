package devtoolkit

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func sitemapFor(base string, blogs []Blog, tags []Tag) sitemapURLSet {
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
	}
	for _, b := range blogs {
		mod := b.UpdatedAt
		if mod.IsZero() {
			mod = b.PublishedAt
		}
		u := sitemapURL{Loc: BuildURL(base, "blog", b.Slug)}
		if !mod.IsZero() {
			u.LastMod = mod.Format(time.DateOnly)
		}
		urls = append(urls, u)
	}
	for _, t := range tags {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, "tag", t.Slug)})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, blogs []Blog, tags []Tag) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(sitemapFor(a.Config.URL, blogs, tags))
}
