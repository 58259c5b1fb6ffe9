package slug

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
)

var (
	// ErrProbe is returned when the uniqueness lookup fails and the
	// negotiator is not configured to fail open. Callers may retry.
	ErrProbe = errors.New("slug: uniqueness probe failed")

	// ErrExhausted is returned when WithMaxAttempts is set and every
	// candidate within the bound is taken.
	ErrExhausted = errors.New("slug: no free candidate within attempt limit")
)

// Prober looks up which record, if any, currently holds a slug.
type Prober interface {
	// Probe returns the ID of the record holding s, or "" if none does.
	Probe(ctx context.Context, s string) (string, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, s string) (string, error)

// Probe calls f(ctx, s).
func (f ProberFunc) Probe(ctx context.Context, s string) (string, error) {
	return f(ctx, s)
}

// Reserver claims a slug for a record for a short time so that concurrent
// negotiations from other sessions skip it.
type Reserver interface {
	// Reserve returns true if s is now held by holder, including when
	// holder already held it.
	Reserve(ctx context.Context, s, holder string) (bool, error)
}

// Negotiator finds a slug for a title that no other record holds.
type Negotiator struct {
	prober      Prober
	reserver    Reserver
	failOpen    bool
	maxAttempts int
	fallback    func() string
	logger      *slog.Logger
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithFailOpen makes probe failures count as "no conflict" instead of
// aborting the negotiation.
func WithFailOpen(failOpen bool) Option {
	return func(n *Negotiator) {
		n.failOpen = failOpen
	}
}

// WithReserver enables short-lived reservations of accepted candidates.
func WithReserver(r Reserver) Option {
	return func(n *Negotiator) {
		n.reserver = r
	}
}

// WithMaxAttempts bounds the number of probed candidates. Zero means no bound.
func WithMaxAttempts(max int) Option {
	return func(n *Negotiator) {
		n.maxAttempts = max
	}
}

// WithFallback sets the generator used when a title normalizes to "".
func WithFallback(fn func() string) Option {
	return func(n *Negotiator) {
		n.fallback = fn
	}
}

// WithLogger sets the logger used for collision and probe-failure messages.
func WithLogger(l *slog.Logger) Option {
	return func(n *Negotiator) {
		n.logger = l
	}
}

// NewNegotiator creates a Negotiator that checks candidates against p.
func NewNegotiator(p Prober, opts ...Option) *Negotiator {
	n := &Negotiator{
		prober:   p,
		fallback: FallbackToken,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// FallbackToken returns a random slug of the form "post-1a2b3c4d".
func FallbackToken() string {
	id := uuid.New()
	return "post-" + id.String()[:8]
}

// Negotiate returns a slug derived from title that is free, or already held
// by the record selfID. Pass an empty selfID when creating a record.
//
// Candidates are tried in the order base, base-1, base-2, ... The check and
// the caller's subsequent write are not atomic: two sessions negotiating the
// same title at the same time can both be handed the same candidate.
func (n *Negotiator) Negotiate(ctx context.Context, title, selfID string) (string, error) {
	base := Normalize(title)
	if base == "" {
		base = n.fallback()
		n.logger.Debug("slug: title has no usable characters, using fallback",
			"title", title, "base", base)
	}

	holder := selfID
	if holder == "" {
		holder = uuid.NewString()
	}

	candidate := base
	counter := 1
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if n.maxAttempts > 0 && attempt > n.maxAttempts {
			return "", fmt.Errorf("%w: %q after %d attempts", ErrExhausted, base, n.maxAttempts)
		}

		free, err := n.available(ctx, candidate, selfID, holder)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}

		n.logger.Debug("slug: candidate taken", "candidate", candidate, "self", selfID)
		candidate = base + "-" + strconv.Itoa(counter)
		counter++
	}
}

func (n *Negotiator) available(ctx context.Context, candidate, selfID, holder string) (bool, error) {
	owner, err := n.prober.Probe(ctx, candidate)
	if err != nil {
		if !n.failOpen {
			return false, fmt.Errorf("%w: %q: %w", ErrProbe, candidate, err)
		}
		n.logger.Warn("slug: probe failed, treating candidate as free",
			"candidate", candidate, "error", err.Error())
		owner = ""
	}
	if owner != "" && owner != selfID {
		return false, nil
	}
	if n.reserver == nil {
		return true, nil
	}
	ok, err := n.reserver.Reserve(ctx, candidate, holder)
	if err != nil {
		if !n.failOpen {
			return false, fmt.Errorf("%w: reserve %q: %w", ErrProbe, candidate, err)
		}
		n.logger.Warn("slug: reservation failed, treating candidate as free",
			"candidate", candidate, "error", err.Error())
		return true, nil
	}
	return ok, nil
}
