// Package devtoolkit is a multi-member blogging application built with Go,
// Echo, and templ. Members sign in through an external identity provider,
// write Markdown posts with debounced autosave, tag and publish them; guests
// read published posts, tag listings, RSS and a sitemap.
//
// Pages are rendered by templ components supplied through ViewFuncs, so a
// site owns its templates while devtoolkit owns handlers, middleware and
// persistence.
package devtoolkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/ankushjain358/dev-toolkit/autosave"
	"github.com/ankushjain358/dev-toolkit/identity"
	"github.com/ankushjain358/dev-toolkit/slug"
	"github.com/ankushjain358/dev-toolkit/storage"
)

// ViewFuncs holds the templ components the handlers render.
type ViewFuncs struct {
	Home        func(blogs []Blog, activeTag string, tags []Tag, siteURL string) templ.Component
	BlogSection func(blogs []Blog, activeTag string, tags []Tag) templ.Component
	Post        func(blog Blog, related []Blog, siteURL string) templ.Component
	TagPage     func(tag Tag, blogs []Blog, siteURL string) templ.Component
	SignIn      func(showError bool, csrfToken string) templ.Component

	Dashboard      func(mc MemberContext, blogs []Blog) templ.Component
	MyBlogs        func(mc MemberContext, blogs []Blog) templ.Component
	Editor         func(mc MemberContext, blog Blog) templ.Component
	AutosaveStatus func(status string) templ.Component
	ProfileForm    func(mc MemberContext, p Profile) templ.Component
	Stub           func(mc MemberContext, title string) templ.Component

	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// MemberContext is passed to every member page.
type MemberContext struct {
	User      User
	Flashes   []Flash
	CSRFToken string
}

// App is the central application. It wires together the store, cache,
// services, handlers, middleware, and site templates.
type App struct {
	Config     SiteConfig
	Echo       *echo.Echo
	Store      *Store
	Cache      *BlogCache
	Blogs      *Blogs
	Identities *identity.Reconciler
	Bucket     storage.Bucket
	Autosave   *autosave.Scheduler
	Logger     *slog.Logger
	Views      ViewFuncs

	signinLimiter *SigninLimiter
	reserver      *slug.RedisReserver
	notices       *noticeBoard
	customRoutes  []func(*App)
	staticDir     string
}

// New creates an App with the given configuration and views.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: "static",
		notices:   newNoticeBoard(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = NewLogger(cfg.Log)
	}
	return a
}

// Init opens the store and external services and registers middleware and
// routes. Start calls it; tests call it directly and drive a.Echo.
func (a *App) Init(ctx context.Context) error {
	if err := a.Config.validate(); err != nil {
		return err
	}

	store, err := NewStore(ctx, a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("devtoolkit: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewBlogCache(store, a.Config.PostCacheTTL)

	negotiator, err := a.newNegotiator(ctx)
	if err != nil {
		return err
	}
	a.Blogs = NewBlogs(store, negotiator, a.Cache, a.Logger)
	a.Identities = identity.NewReconciler(store, a.Logger)

	if a.Bucket == nil {
		bucket, err := a.newBucket(ctx)
		if err != nil {
			return err
		}
		a.Bucket = bucket
	}

	a.Autosave = autosave.New(a.Config.AutosaveDelay, autosave.WithOnError(a.autosaveFailed))
	a.signinLimiter = NewSigninLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) newNegotiator(ctx context.Context) (*slug.Negotiator, error) {
	opts := []slug.Option{
		slug.WithFailOpen(a.Config.Slug.ProbeFailOpen),
		slug.WithMaxAttempts(a.Config.Slug.MaxAttempts),
		slug.WithLogger(a.Logger),
	}
	if a.Config.RedisURL != "" {
		r, err := slug.NewRedisReserver(a.Config.RedisURL, a.Config.Slug.ReservationTTL)
		if err != nil {
			return nil, fmt.Errorf("devtoolkit: init slug reserver: %w", err)
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("devtoolkit: ping redis: %w", err)
		}
		a.reserver = r
		opts = append(opts, slug.WithReserver(r))
	}
	return slug.NewNegotiator(slug.ProberFunc(a.Store.ProbeSlug), opts...), nil
}

func (a *App) newBucket(ctx context.Context) (storage.Bucket, error) {
	sc := a.Config.Storage
	switch sc.Driver {
	case "minio":
		b, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  sc.Endpoint,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			Bucket:    sc.Bucket,
			UseSSL:    sc.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("devtoolkit: init storage: %w", err)
		}
		return b, nil
	default:
		b, err := storage.NewLocal(sc.Dir)
		if err != nil {
			return nil, fmt.Errorf("devtoolkit: init storage: %w", err)
		}
		return b, nil
	}
}

// Start initializes the app and serves HTTP until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Server: listening", "addr", a.Config.Addr)
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Logger.Info("Server: shutting down")
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/static", a.staticDir)
	if local, ok := a.Bucket.(*storage.Local); ok && a.Config.Storage.PublicURL == "" {
		e.Static("/public", filepath.Join(local.Dir(), "public"))
	}
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/healthz", a.handleReady)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/", a.handleHome)
	e.GET("/blog/:slug/", a.handlePost)
	e.GET("/tag/:slug/", a.handleTag)

	// Authentication
	e.GET("/auth/signin/", a.handleSignInForm)
	e.POST("/auth/session/", a.handleSession)
	e.POST("/auth/logout/", handleLogout)
	e.POST("/auth/callback/", a.handleAuthCallback)
	e.POST("/auth/callback", a.handleAuthCallback)

	// Member area
	me := e.Group("/me", a.requireMember)
	me.GET("/", a.handleDashboard)
	me.GET("/blogs/", a.handleMyBlogs)
	me.POST("/blogs/", a.handleCreateBlog)
	me.GET("/blogs/:id/", a.handleEditBlog)
	me.POST("/blogs/:id/", a.handleSaveBlog)
	me.POST("/blogs/:id/autosave/", a.handleAutosave)
	me.POST("/blogs/:id/leave/", a.handleLeaveEditor)
	me.POST("/blogs/:id/publish/", a.handleTogglePublish)
	me.POST("/blogs/:id/delete/", a.handleDeleteBlog)
	me.POST("/blogs/:id/tags/", a.handleSaveTags)
	me.POST("/blogs/:id/cover/", a.handleCoverUpload)
	me.POST("/blogs/:id/images/", a.handleContentImageUpload)
	me.GET("/profile/", a.handleProfile)
	me.POST("/profile/", a.handleSaveProfile)
	me.POST("/profile/avatar/", a.handleAvatarUpload)
	me.GET("/notes/", a.stub("Notes"))
	me.GET("/bookmarks/", a.stub("Bookmarks"))
	me.GET("/boards/", a.stub("Boards"))
}

// autosaveFailed receives errors of debounced saves. Keys have the form
// "<userID>:<blogID>"; the member sees the failure on their next page.
func (a *App) autosaveFailed(key string, err error) {
	userID, blogID, _ := strings.Cut(key, ":")
	a.Logger.Error("Autosave: save failed",
		"user_id", userID,
		"blog_id", blogID,
		"error", err.Error())
	a.notices.add(userID, "Auto-save failed: "+userMessage(err))
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Autosave != nil {
		a.Autosave.Close()
	}
	if a.signinLimiter != nil {
		a.signinLimiter.Close()
	}
	var errs []error
	if a.reserver != nil {
		errs = append(errs, a.reserver.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
