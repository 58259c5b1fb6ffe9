package devtoolkit

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/ankushjain358/dev-toolkit/storage"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
)

// processImage decodes an image from src, resizes it to maxImageWidth when
// wider, and encodes it as JPEG.
func processImage(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// uploadImage reads the multipart file in field, normalises it and stores
// it under key. It returns the public URL of the object.
func (a *App) uploadImage(c echo.Context, field, key string) (string, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", invalid(field, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return "", invalid(field, "File too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	data, err := processImage(io.LimitReader(src, maxUploadSize))
	if err != nil {
		return "", invalid(field, "Invalid image. Upload a JPEG, PNG or GIF file.")
	}

	ctx := c.Request().Context()
	if err := a.Bucket.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/jpeg"); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	a.Logger.Info("Images: stored",
		"key", key,
		"size", len(data))
	return storage.PublicURL(a.Config.Storage.PublicURL, key), nil
}

// removeObject deletes the object behind a URL this app produced. Failures
// are logged only; the record already points elsewhere.
func (a *App) removeObject(c echo.Context, url string) {
	key, ok := storage.KeyFromURL(a.Config.Storage.PublicURL, url)
	if !ok {
		return
	}
	if err := a.Bucket.Delete(c.Request().Context(), key); err != nil {
		a.Logger.Warn("Images: failed to delete replaced object",
			"key", key,
			"error", err.Error())
	}
}

func (a *App) handleCoverUpload(c echo.Context) error {
	u, _ := CurrentUser(c)
	id := c.Param("id")
	editURL := "/me/blogs/" + id + "/"

	blog, err := a.Blogs.Get(c.Request().Context(), u.ID, id)
	if err != nil {
		return a.fail(c, err, "/me/blogs/")
	}
	url, err := a.uploadImage(c, "image", storage.BlogImageKey(id, "cover"))
	if err != nil {
		return a.fail(c, err, editURL)
	}
	if err := a.Blogs.SetCover(c.Request().Context(), u.ID, id, url); err != nil {
		a.removeObject(c, url)
		return a.fail(c, err, editURL)
	}
	if blog.CoverImage != "" {
		a.removeObject(c, blog.CoverImage)
	}
	addFlash(c, FlashSuccess, "Cover image updated")
	return c.Redirect(http.StatusSeeOther, editURL)
}

type imageUploadResponse struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// handleContentImageUpload stores an image for use inside the blog body.
// Editors that post via htmx or fetch get JSON with a Markdown snippet.
func (a *App) handleContentImageUpload(c echo.Context) error {
	u, _ := CurrentUser(c)
	id := c.Param("id")
	editURL := "/me/blogs/" + id + "/"
	wantsJSON := isHTMX(c) || c.Request().Header.Get(echo.HeaderAccept) == echo.MIMEApplicationJSON

	if _, err := a.Blogs.Get(c.Request().Context(), u.ID, id); err != nil {
		if wantsJSON {
			return c.JSON(http.StatusNotFound, map[string]string{"error": userMessage(err)})
		}
		return a.fail(c, err, "/me/blogs/")
	}
	url, err := a.uploadImage(c, "image", storage.BlogImageKey(id, "content"))
	if err != nil {
		if ve, ok := IsValidation(err); ok && wantsJSON {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message})
		}
		if wantsJSON {
			return err
		}
		return a.fail(c, err, editURL)
	}
	snippet := "![](" + url + ")"
	if wantsJSON {
		return c.JSON(http.StatusOK, imageUploadResponse{URL: url, Markdown: snippet})
	}
	addFlash(c, FlashSuccess, "Image uploaded: "+snippet)
	return c.Redirect(http.StatusSeeOther, editURL)
}

func (a *App) handleAvatarUpload(c echo.Context) error {
	u, _ := CurrentUser(c)
	ctx := c.Request().Context()

	p, err := a.Store.GetProfile(ctx, u.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	p.UserID = u.ID
	url, err := a.uploadImage(c, "avatar", storage.AvatarKey(u.ID))
	if err != nil {
		return a.fail(c, err, "/me/profile/")
	}
	old := p.AvatarURL
	p.AvatarURL = url
	p.UpdatedAt = a.Blogs.now()
	if err := a.Store.SaveProfile(ctx, p); err != nil {
		a.removeObject(c, url)
		return err
	}
	if old != "" {
		a.removeObject(c, old)
	}
	addFlash(c, FlashSuccess, "Avatar updated")
	return c.Redirect(http.StatusSeeOther, "/me/profile/")
}
