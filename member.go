package devtoolkit

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// fail reports err to the member. Validation errors and missing blogs become
// flash messages on redirectTo; anything else goes to the error handler.
func (a *App) fail(c echo.Context, err error, redirectTo string) error {
	if _, ok := IsValidation(err); !ok && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicateSlug) {
		return err
	}
	addFlash(c, FlashError, userMessage(err))
	return c.Redirect(http.StatusSeeOther, redirectTo)
}

// autosaveKey identifies the pending save of one member's blog.
func autosaveKey(userID, blogID string) string {
	return userID + ":" + blogID
}

func blogInput(c echo.Context) BlogInput {
	return BlogInput{
		Title:   c.FormValue("title"),
		Content: c.FormValue("content"),
	}
}

func (a *App) handleDashboard(c echo.Context) error {
	mc := a.memberContext(c)
	blogs, err := a.Blogs.List(c.Request().Context(), mc.User.ID)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Dashboard(mc, blogs))
}

func (a *App) handleMyBlogs(c echo.Context) error {
	mc := a.memberContext(c)
	blogs, err := a.Blogs.List(c.Request().Context(), mc.User.ID)
	if err != nil {
		return err
	}
	return Render(c, a.Views.MyBlogs(mc, blogs))
}

func (a *App) handleCreateBlog(c echo.Context) error {
	u, _ := CurrentUser(c)
	b, err := a.Blogs.Create(c.Request().Context(), u.ID, c.FormValue("title"))
	if err != nil {
		return a.fail(c, err, "/me/blogs/")
	}
	return c.Redirect(http.StatusSeeOther, "/me/blogs/"+b.ID+"/")
}

func (a *App) handleEditBlog(c echo.Context) error {
	mc := a.memberContext(c)
	b, err := a.Blogs.Get(c.Request().Context(), mc.User.ID, c.Param("id"))
	if err != nil {
		return a.fail(c, err, "/me/blogs/")
	}
	return Render(c, a.Views.Editor(mc, b))
}

// handleSaveBlog saves the editor immediately. Any pending debounced save of
// the same blog is superseded.
func (a *App) handleSaveBlog(c echo.Context) error {
	u, _ := CurrentUser(c)
	id := c.Param("id")
	in := blogInput(c)

	var saved Blog
	err := a.Autosave.Run(c.Request().Context(), autosaveKey(u.ID, id), func(ctx context.Context) error {
		b, err := a.Blogs.Save(ctx, u.ID, id, in)
		saved = b
		return err
	})
	if ve, ok := IsValidation(err); ok {
		b, gerr := a.Blogs.Get(c.Request().Context(), u.ID, id)
		if gerr != nil {
			return a.fail(c, gerr, "/me/blogs/")
		}
		b.Title, b.Content = in.Title, in.Content
		mc := a.memberContext(c)
		mc.Flashes = append(mc.Flashes, Flash{Kind: FlashError, Message: ve.Message})
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.Editor(mc, b))
	}
	if err != nil {
		return a.fail(c, err, "/me/blogs/"+id+"/")
	}
	addFlash(c, FlashSuccess, "Saved")
	return c.Redirect(http.StatusSeeOther, "/me/blogs/"+saved.ID+"/")
}

// handleAutosave schedules a debounced save of the editor contents. Each call
// restarts the delay so only the last edit is written.
func (a *App) handleAutosave(c echo.Context) error {
	u, _ := CurrentUser(c)
	id := c.Param("id")
	ctx := c.Request().Context()

	if _, err := a.Blogs.Get(ctx, u.ID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.AutosaveStatus(userMessage(err)))
		}
		return err
	}
	in := blogInput(c)
	if _, err := validateInput(in); err != nil {
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.AutosaveStatus(userMessage(err)))
	}

	a.Autosave.Schedule(autosaveKey(u.ID, id), func(ctx context.Context) error {
		_, err := a.Blogs.Save(ctx, u.ID, id, in)
		return err
	})
	return RenderStatus(c, http.StatusAccepted, a.Views.AutosaveStatus("Unsaved changes"))
}

// handleLeaveEditor drops the pending save when the member leaves without
// saving.
func (a *App) handleLeaveEditor(c echo.Context) error {
	u, _ := CurrentUser(c)
	id := c.Param("id")
	if a.Autosave.Cancel(autosaveKey(u.ID, id)) {
		a.Logger.Info("Autosave: discarded pending save",
			"user_id", u.ID,
			"blog_id", id)
	}
	if isHTMX(c) {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, "/me/blogs/")
}

func (a *App) handleTogglePublish(c echo.Context) error {
	u, _ := CurrentUser(c)
	id := c.Param("id")
	b, err := a.Blogs.TogglePublish(c.Request().Context(), u.ID, id)
	if err != nil {
		return a.fail(c, err, "/me/blogs/"+id+"/")
	}
	if b.Published() {
		addFlash(c, FlashSuccess, "Published")
	} else {
		addFlash(c, FlashSuccess, "Moved back to drafts")
	}
	return c.Redirect(http.StatusSeeOther, "/me/blogs/"+id+"/")
}

func (a *App) handleDeleteBlog(c echo.Context) error {
	u, _ := CurrentUser(c)
	id := c.Param("id")
	a.Autosave.Cancel(autosaveKey(u.ID, id))
	if err := a.Blogs.Delete(c.Request().Context(), u.ID, id); err != nil {
		return a.fail(c, err, "/me/blogs/")
	}
	addFlash(c, FlashSuccess, "Blog deleted")
	return c.Redirect(http.StatusSeeOther, "/me/blogs/")
}

func (a *App) handleSaveTags(c echo.Context) error {
	u, _ := CurrentUser(c)
	id := c.Param("id")
	if _, err := a.Blogs.SaveTags(c.Request().Context(), u.ID, id, SplitTagNames(c.FormValue("tags"))); err != nil {
		return a.fail(c, err, "/me/blogs/"+id+"/")
	}
	addFlash(c, FlashSuccess, "Tags saved")
	return c.Redirect(http.StatusSeeOther, "/me/blogs/"+id+"/")
}

func (a *App) loadProfile(ctx context.Context, userID string) (Profile, error) {
	p, err := a.Store.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Profile{UserID: userID}, nil
	}
	return p, err
}

func (a *App) handleProfile(c echo.Context) error {
	mc := a.memberContext(c)
	p, err := a.loadProfile(c.Request().Context(), mc.User.ID)
	if err != nil {
		return err
	}
	return Render(c, a.Views.ProfileForm(mc, p))
}

func (a *App) handleSaveProfile(c echo.Context) error {
	u, _ := CurrentUser(c)
	ctx := c.Request().Context()
	current, err := a.loadProfile(ctx, u.ID)
	if err != nil {
		return err
	}

	submitted := Profile{
		UserID:      u.ID,
		DisplayName: c.FormValue("display_name"),
		Bio:         c.FormValue("bio"),
		AvatarURL:   current.AvatarURL,
		Location:    c.FormValue("location"),
		Website:     c.FormValue("website"),
		TwitterURL:  c.FormValue("twitter_url"),
		LinkedinURL: c.FormValue("linkedin_url"),
		GithubURL:   c.FormValue("github_url"),
	}
	p, err := validateProfile(submitted)
	if ve, ok := IsValidation(err); ok {
		mc := a.memberContext(c)
		mc.Flashes = append(mc.Flashes, Flash{Kind: FlashError, Message: ve.Message})
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.ProfileForm(mc, submitted))
	}
	p.UpdatedAt = a.Blogs.now()
	if err := a.Store.SaveProfile(ctx, p); err != nil {
		return err
	}
	addFlash(c, FlashSuccess, "Profile saved")
	return c.Redirect(http.StatusSeeOther, "/me/profile/")
}

// stub renders placeholder pages for member sections that have no
// functionality yet.
func (a *App) stub(title string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return Render(c, a.Views.Stub(a.memberContext(c), title))
	}
}
