package devtoolkit

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`
}

// rssFeed builds the feed document for published blogs, newest first.
func rssFeed(cfg SiteConfig, blogs []Blog) rssXML {
	base := cfg.URL
	items := make([]rssItem, 0, len(blogs))
	var latest time.Time
	for _, b := range blogs {
		item := rssItem{
			Title:       b.Title,
			Link:        BuildURL(base, "blog", b.Slug),
			Description: b.Summary,
			GUID:        BuildURL(base, "blog", b.Slug),
		}
		for _, t := range b.Tags {
			item.Categories = append(item.Categories, t.Name)
		}
		if !b.PublishedAt.IsZero() {
			item.PubDate = b.PublishedAt.Format(time.RFC1123Z)
			if b.PublishedAt.After(latest) {
				latest = b.PublishedAt
			}
		}
		items = append(items, item)
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       cfg.Name,
			Link:        base,
			Description: cfg.Description,
			Items:       items,
		},
	}
	if !latest.IsZero() {
		feed.Channel.LastBuildDate = latest.Format(time.RFC1123Z)
	}
	return feed
}

func (a *App) renderRSS(c echo.Context, blogs []Blog) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(rssFeed(a.Config, blogs))
}
