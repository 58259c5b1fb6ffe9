// Package identity keeps one application user record per email address and
// binds every authentication subject that signs in with that email to it.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no record has the email.
	ErrNotFound = errors.New("identity not found")

	// ErrDuplicateEmail is returned by a Store when a record with the email
	// already exists.
	ErrDuplicateEmail = errors.New("identity with this email already exists")

	// ErrInvalid is returned when the subject or email is empty.
	ErrInvalid = errors.New("identity: subject and email are required")

	// ErrSubjectBound is returned when the subject already belongs to the
	// record of a different email.
	ErrSubjectBound = errors.New("identity: subject is bound to another email")
)

// Record is the application-level user. Subjects lists every auth subject
// bound to Email.
type Record struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Subjects  []string  `json:"subjects"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSubject reports whether sub is bound to r.
func (r Record) HasSubject(sub string) bool {
	return slices.Contains(r.Subjects, sub)
}

// Store defines persistence operations for identity records.
type Store interface {
	IdentityByEmail(ctx context.Context, email string) (Record, error)
	IdentityBySubject(ctx context.Context, sub string) (Record, error)
	// CreateIdentity returns ErrDuplicateEmail when the email is taken and
	// ErrSubjectBound when the id or a subject is already in use.
	CreateIdentity(ctx context.Context, rec Record) (Record, error)
	// AddIdentitySubject binds sub to the record id. Binding a subject that
	// is already bound to id is not an error; one bound elsewhere is
	// ErrSubjectBound.
	AddIdentitySubject(ctx context.Context, id, sub string) error
}

// Reconciler runs the post-confirmation reconciliation.
type Reconciler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler creates a Reconciler backed by store.
func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Reconcile makes sure exactly one record exists for email and that sub is
// bound to it. Calling it again with the same arguments changes nothing.
// A subject never moves between records: if sub already belongs to another
// email, Reconcile returns ErrSubjectBound and leaves the store untouched.
func (r *Reconciler) Reconcile(ctx context.Context, sub, email string) (Record, error) {
	sub = strings.TrimSpace(sub)
	email = NormalizeEmail(email)
	if sub == "" || email == "" {
		return Record{}, ErrInvalid
	}

	held, err := r.store.IdentityBySubject(ctx, sub)
	switch {
	case err == nil && held.Email == email:
		return held, nil
	case err == nil:
		return Record{}, r.subjectBound(held.ID, sub, email)
	case !errors.Is(err, ErrNotFound):
		r.logger.Error("Identity: failed to look up subject",
			"subject", sub,
			"error", err.Error())
		return Record{}, fmt.Errorf("failed to look up subject: %w", err)
	}

	rec, err := r.store.IdentityByEmail(ctx, email)
	switch {
	case err == nil:
		return r.bind(ctx, rec, sub)
	case !errors.Is(err, ErrNotFound):
		r.logger.Error("Identity: failed to look up email",
			"email", email,
			"error", err.Error())
		return Record{}, fmt.Errorf("failed to look up identity: %w", err)
	}

	now := r.now().UTC()
	created, err := r.store.CreateIdentity(ctx, Record{
		ID:        sub,
		Email:     email,
		Subjects:  []string{sub},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err == nil {
		r.logger.Info("Identity: created record",
			"id", created.ID,
			"email", email)
		return created, nil
	}
	if errors.Is(err, ErrSubjectBound) {
		// A concurrent callback may have created this very record.
		held, err := r.store.IdentityBySubject(ctx, sub)
		if err == nil && held.Email == email {
			return held, nil
		}
		return Record{}, r.subjectBound(held.ID, sub, email)
	}
	if !errors.Is(err, ErrDuplicateEmail) {
		r.logger.Error("Identity: failed to create record",
			"email", email,
			"error", err.Error())
		return Record{}, fmt.Errorf("failed to create identity: %w", err)
	}

	// Another callback created the record between our lookup and insert.
	rec, err = r.store.IdentityByEmail(ctx, email)
	if err != nil {
		return Record{}, fmt.Errorf("failed to re-read identity: %w", err)
	}
	return r.bind(ctx, rec, sub)
}

func (r *Reconciler) bind(ctx context.Context, rec Record, sub string) (Record, error) {
	if rec.HasSubject(sub) {
		r.logger.Debug("Identity: subject already bound",
			"id", rec.ID,
			"subject", sub)
		return rec, nil
	}
	if err := r.store.AddIdentitySubject(ctx, rec.ID, sub); err != nil {
		if errors.Is(err, ErrSubjectBound) {
			return Record{}, r.subjectBound("", sub, rec.Email)
		}
		r.logger.Error("Identity: failed to bind subject",
			"id", rec.ID,
			"subject", sub,
			"error", err.Error())
		return Record{}, fmt.Errorf("failed to bind subject: %w", err)
	}
	rec.Subjects = append(slices.Clone(rec.Subjects), sub)
	rec.UpdatedAt = r.now().UTC()
	r.logger.Info("Identity: bound new subject",
		"id", rec.ID,
		"subject", sub)
	return rec, nil
}

func (r *Reconciler) subjectBound(heldBy, sub, email string) error {
	r.logger.Warn("Identity: subject bound to another email",
		"subject", sub,
		"held_by", heldBy,
		"email", email)
	return ErrSubjectBound
}
