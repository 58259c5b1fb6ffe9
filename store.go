package devtoolkit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/ankushjain358/dev-toolkit/identity"
)

var _ identity.Store = (*Store)(nil)

// goose keeps its settings in package globals.
var migrateMu sync.Mutex

// Store wraps a SQLite database and provides persistence for blogs, tag
// references, identities and profiles.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// busy_timeout and foreign_keys are per connection, so they go in the
	// DSN and apply to every connection in the pool.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent read/write access and tune performance:
	// synchronous=NORMAL is safe with WAL and avoids an fsync per transaction.
	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the latest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	migrateMu.Lock()
	defer migrateMu.Unlock()
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

// ---------- blogs ----------

const blogColumns = `id, owner_id, title, slug, state, content, content_html, summary, cover_image, tags, created_at, updated_at, published_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlog(row rowScanner) (Blog, error) {
	var b Blog
	var state, tags, created, updated, published string
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Slug, &state, &b.Content, &b.ContentHTML,
		&b.Summary, &b.CoverImage, &tags, &created, &updated, &published); err != nil {
		return Blog{}, err
	}
	b.State = BlogState(state)
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(updated)
	b.PublishedAt = parseTime(published)
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
			return Blog{}, fmt.Errorf("decode tags of blog %s: %w", b.ID, err)
		}
	}
	return b, nil
}

func (s *Store) queryBlogs(ctx context.Context, query string, args ...any) ([]Blog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blogs []Blog
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, b)
	}
	return blogs, rows.Err()
}

// ProbeSlug returns the id of the blog holding slug, or "" if it is free.
func (s *Store) ProbeSlug(ctx context.Context, slug string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM blogs WHERE slug = ?`, slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("probe slug: %w", err)
	}
	return id, nil
}

// CreateBlog inserts b.
func (s *Store) CreateBlog(ctx context.Context, b Blog) error {
	tags, err := json.Marshal(nonNilTags(b.Tags))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO blogs (`+blogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Title, b.Slug, string(b.State), b.Content, b.ContentHTML, b.Summary,
		b.CoverImage, string(tags), formatTime(b.CreatedAt), formatTime(b.UpdatedAt), formatTime(b.PublishedAt))
	if isUniqueViolation(err, "blogs.slug") {
		return ErrDuplicateSlug
	}
	return err
}

// UpdateBlog writes the editable fields of b. The blog must belong to
// b.OwnerID.
func (s *Store) UpdateBlog(ctx context.Context, b Blog) error {
	res, err := s.db.ExecContext(ctx, `UPDATE blogs SET title = ?, slug = ?, content = ?, content_html = ?, summary = ?, cover_image = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		b.Title, b.Slug, b.Content, b.ContentHTML, b.Summary, b.CoverImage, formatTime(b.UpdatedAt), b.ID, b.OwnerID)
	if isUniqueViolation(err, "blogs.slug") {
		return ErrDuplicateSlug
	}
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetBlogState changes the publication state of a blog.
func (s *Store) SetBlogState(ctx context.Context, ownerID, id string, state BlogState, publishedAt, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE blogs SET state = ?, published_at = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		string(state), formatTime(publishedAt), formatTime(updatedAt), id, ownerID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetBlogCover changes the cover image URL of a blog.
func (s *Store) SetBlogCover(ctx context.Context, ownerID, id, url string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE blogs SET cover_image = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		url, formatTime(updatedAt), id, ownerID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// GetBlog returns a blog by id regardless of state or owner.
func (s *Store) GetBlog(ctx context.Context, id string) (Blog, error) {
	b, err := scanBlog(s.db.QueryRowContext(ctx, `SELECT `+blogColumns+` FROM blogs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Blog{}, ErrNotFound
	}
	return b, err
}

// GetPublishedBlog returns a published blog by slug.
func (s *Store) GetPublishedBlog(ctx context.Context, slug string) (Blog, error) {
	b, err := scanBlog(s.db.QueryRowContext(ctx, `SELECT `+blogColumns+` FROM blogs WHERE slug = ? AND state = ?`, slug, string(StatePublished)))
	if errors.Is(err, sql.ErrNoRows) {
		return Blog{}, ErrNotFound
	}
	return b, err
}

// ListBlogsByOwner returns every blog of a member, most recently edited first.
func (s *Store) ListBlogsByOwner(ctx context.Context, ownerID string) ([]Blog, error) {
	return s.queryBlogs(ctx, `SELECT `+blogColumns+` FROM blogs WHERE owner_id = ? ORDER BY updated_at DESC`, ownerID)
}

// ListPublishedBlogs returns all published blogs, newest first.
func (s *Store) ListPublishedBlogs(ctx context.Context) ([]Blog, error) {
	return s.queryBlogs(ctx, `SELECT `+blogColumns+` FROM blogs WHERE state = ? ORDER BY published_at DESC`, string(StatePublished))
}

// ListPublishedBlogsByTag returns published blogs that carry a tag reference
// for tagSlug.
func (s *Store) ListPublishedBlogsByTag(ctx context.Context, tagSlug string) ([]Blog, error) {
	cols := "b." + strings.ReplaceAll(blogColumns, ", ", ", b.")
	return s.queryBlogs(ctx, `SELECT `+cols+` FROM blogs b
		JOIN tag_references r ON r.ref = 'BLOG#' || b.id
		WHERE r.slug = ? AND b.state = ?
		ORDER BY b.published_at DESC`, tagSlug, string(StatePublished))
}

// ListPublishedTags returns the distinct tags used by published blogs,
// sorted by slug.
func (s *Store) ListPublishedTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.slug, MIN(r.name) FROM tag_references r
		JOIN blogs b ON r.ref = 'BLOG#' || b.id
		WHERE b.state = ?
		GROUP BY r.slug
		ORDER BY r.slug`, string(StatePublished))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.Slug, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteBlog removes a blog owned by ownerID. Tag references are left to
// the caller.
func (s *Store) DeleteBlog(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteTagReferences removes every tag reference pointing at ref.
func (s *Store) DeleteTagReferences(ctx context.Context, ref string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tag_references WHERE ref = ?`, ref)
	return err
}

// ReplaceBlogTags sets the tag list of a blog and rebuilds its tag
// references in one transaction.
func (s *Store) ReplaceBlogTags(ctx context.Context, ownerID, id string, tags []Tag, updatedAt time.Time) error {
	encoded, err := json.Marshal(nonNilTags(tags))
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE blogs SET tags = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		string(encoded), formatTime(updatedAt), id, ownerID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	ref := BlogRef(id)
	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_references WHERE ref = ?`, ref); err != nil {
		return err
	}
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tag_references (id, slug, name, ref, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), t.Slug, t.Name, ref, formatTime(updatedAt)); err != nil {
			return fmt.Errorf("insert tag reference %q: %w", t.Slug, err)
		}
	}
	return tx.Commit()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNilTags(tags []Tag) []Tag {
	if tags == nil {
		return []Tag{}
	}
	return tags
}

// ---------- identities ----------

// IdentityByEmail returns the identity record for email.
func (s *Store) IdentityByEmail(ctx context.Context, email string) (identity.Record, error) {
	var rec identity.Record
	var created, updated string
	err := s.db.QueryRowContext(ctx, `SELECT id, email, created_at, updated_at FROM users WHERE email = ?`, email).
		Scan(&rec.ID, &rec.Email, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Record{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Record{}, err
	}
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	rec.Subjects, err = s.identitySubjects(ctx, rec.ID)
	if err != nil {
		return identity.Record{}, err
	}
	return rec, nil
}

// IdentityBySubject returns the identity record that subject is bound to.
func (s *Store) IdentityBySubject(ctx context.Context, subject string) (identity.Record, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `SELECT u.email FROM users u JOIN user_subjects us ON us.user_id = u.id WHERE us.subject = ?`, subject).
		Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Record{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Record{}, err
	}
	return s.IdentityByEmail(ctx, email)
}

func (s *Store) identitySubjects(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT subject FROM user_subjects WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CreateIdentity inserts rec and its subjects.
func (s *Store) CreateIdentity(ctx context.Context, rec identity.Record) (identity.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return identity.Record{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO users (id, email, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Email, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if isUniqueViolation(err, "users.email") {
		return identity.Record{}, identity.ErrDuplicateEmail
	}
	if isUniqueViolation(err, "users.id") {
		return identity.Record{}, identity.ErrSubjectBound
	}
	if err != nil {
		return identity.Record{}, err
	}
	for _, sub := range rec.Subjects {
		_, err := tx.ExecContext(ctx, `INSERT INTO user_subjects (subject, user_id, created_at) VALUES (?, ?, ?)`,
			sub, rec.ID, formatTime(rec.CreatedAt))
		if isUniqueViolation(err, "user_subjects.subject") {
			return identity.Record{}, identity.ErrSubjectBound
		}
		if err != nil {
			return identity.Record{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return identity.Record{}, err
	}
	return rec, nil
}

// AddIdentitySubject binds sub to the identity id. It returns
// identity.ErrSubjectBound when sub belongs to another identity.
func (s *Store) AddIdentitySubject(ctx context.Context, id, sub string) error {
	now := formatTime(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE users SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return identity.ErrNotFound
	}
	res, err = tx.ExecContext(ctx, `INSERT INTO user_subjects (subject, user_id, created_at) VALUES (?, ?, ?) ON CONFLICT(subject) DO NOTHING`,
		sub, id, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var owner string
		if err := tx.QueryRowContext(ctx, `SELECT user_id FROM user_subjects WHERE subject = ?`, sub).Scan(&owner); err != nil {
			return err
		}
		if owner != id {
			return identity.ErrSubjectBound
		}
	}
	return tx.Commit()
}

// ---------- profiles ----------

// GetProfile returns the profile of userID.
func (s *Store) GetProfile(ctx context.Context, userID string) (Profile, error) {
	p := Profile{UserID: userID}
	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT display_name, bio, avatar_url, location, website, twitter_url, linkedin_url, github_url, updated_at FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.DisplayName, &p.Bio, &p.AvatarURL, &p.Location, &p.Website, &p.TwitterURL, &p.LinkedinURL, &p.GithubURL, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// SaveProfile upserts p.
func (s *Store) SaveProfile(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles (user_id, display_name, bio, avatar_url, location, website, twitter_url, linkedin_url, github_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			bio = excluded.bio,
			avatar_url = excluded.avatar_url,
			location = excluded.location,
			website = excluded.website,
			twitter_url = excluded.twitter_url,
			linkedin_url = excluded.linkedin_url,
			github_url = excluded.github_url,
			updated_at = excluded.updated_at`,
		p.UserID, p.DisplayName, p.Bio, p.AvatarURL, p.Location, p.Website, p.TwitterURL, p.LinkedinURL, p.GithubURL, formatTime(p.UpdatedAt))
	return err
}

// TagReferences returns the tag references pointing at ref, ordered by slug.
func (s *Store) TagReferences(ctx context.Context, ref string) ([]TagReference, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, name, ref FROM tag_references WHERE ref = ? ORDER BY slug`, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []TagReference
	for rows.Next() {
		var r TagReference
		if err := rows.Scan(&r.ID, &r.Slug, &r.Name, &r.Ref); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}
