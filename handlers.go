package devtoolkit

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	tag := c.QueryParam("tag")
	blogs, err := a.Cache.ListPublished(ctx, tag)
	if err != nil {
		return err
	}
	tags, err := a.Cache.ListTags(ctx)
	if err != nil {
		return err
	}
	if isHTMX(c) && c.QueryParam("partial") == "blog" {
		return Render(c, a.Views.BlogSection(blogs, tag, tags))
	}
	return Render(c, a.Views.Home(blogs, tag, tags, a.Config.URL))
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	blog, err := a.Cache.GetPublished(ctx, c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	blogs, err := a.Cache.ListPublished(ctx, "")
	if err != nil {
		return err
	}
	return Render(c, a.Views.Post(blog, FilterRelated(blog, blogs), a.Config.URL))
}

// handleTag lists published blogs through the tag reference index, so a
// tag page stays correct even when the cached listing is stale.
func (a *App) handleTag(c echo.Context) error {
	ctx := c.Request().Context()
	tagSlug := c.Param("slug")
	blogs, err := a.Store.ListPublishedBlogsByTag(ctx, tagSlug)
	if err != nil {
		return err
	}
	if len(blogs) == 0 {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	tag := Tag{Slug: tagSlug, Name: tagSlug}
	for _, t := range blogs[0].Tags {
		if t.Slug == tagSlug {
			tag = t
			break
		}
	}
	return Render(c, a.Views.TagPage(tag, blogs, a.Config.URL))
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	blogs, err := a.Cache.ListPublished(ctx, "")
	if err != nil {
		return err
	}
	tags, err := a.Cache.ListTags(ctx)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, blogs, tags)
}

func (a *App) handleFeed(c echo.Context) error {
	blogs, err := a.Cache.ListPublished(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, blogs)
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady reports whether the database and, when configured, Redis are
// reachable.
func (a *App) handleReady(c echo.Context) error {
	ctx := c.Request().Context()
	resp := readyResponse{Status: "ready", Checks: map[string]string{}}
	code := http.StatusOK

	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			a.Logger.Warn("Health: check failed",
				"check", name,
				"error", err.Error())
			resp.Checks[name] = "failed"
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
			return
		}
		resp.Checks[name] = "ok"
	}
	check("database", a.Store.Ping)
	if a.reserver != nil {
		check("redis", a.reserver.Ping)
	}
	return c.JSON(code, resp)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if (ok && he.Code == http.StatusNotFound) || errors.Is(err, ErrNotFound) {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("HTTP: server error",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"error", err.Error())
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
