package devtoolkit

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ankushjain358/dev-toolkit/identity"
)

// idClaims is the payload of an ID token issued by the identity provider.
type idClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid id token")

// verifyIDToken checks the HS256 signature and expiry of raw and returns
// the subject and email it asserts.
func (a *App) verifyIDToken(raw string) (sub, email string, err error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.Config.Auth.TokenIssuer != "" {
		opts = append(opts, jwt.WithIssuer(a.Config.Auth.TokenIssuer))
	}
	var claims idClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(a.Config.Auth.TokenSecret), nil
	}, opts...)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if claims.Subject == "" || strings.TrimSpace(claims.Email) == "" {
		return "", "", fmt.Errorf("%w: sub and email claims are required", errInvalidToken)
	}
	return claims.Subject, claims.Email, nil
}

func (a *App) handleSignInForm(c echo.Context) error {
	if _, ok := CurrentUser(c); ok {
		return c.Redirect(http.StatusSeeOther, "/me/")
	}
	return Render(c, a.Views.SignIn(false, CsrfToken(c)))
}

// handleSession exchanges an ID token for a session cookie.
func (a *App) handleSession(c echo.Context) error {
	ip := c.RealIP()
	if !a.signinLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many sign-in attempts. Try again later.")
	}

	sub, email, err := a.verifyIDToken(c.FormValue("id_token"))
	if err != nil {
		a.signinLimiter.Record(ip)
		a.Logger.Warn("Auth: rejected id token",
			"ip", ip,
			"error", err.Error())
		return RenderStatus(c, http.StatusUnauthorized, a.Views.SignIn(true, CsrfToken(c)))
	}

	rec, err := a.Identities.Reconcile(c.Request().Context(), sub, email)
	if errors.Is(err, identity.ErrSubjectBound) {
		return RenderStatus(c, http.StatusConflict, a.Views.SignIn(true, CsrfToken(c)))
	}
	if err != nil {
		return err
	}
	if err := setUserSession(c, User{ID: rec.ID, Email: rec.Email}); err != nil {
		return err
	}
	a.Logger.Info("Auth: signed in",
		"user_id", rec.ID,
		"subject", sub)
	return c.Redirect(http.StatusSeeOther, safeNext(c.FormValue("next")))
}

// safeNext keeps post sign-in redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/me/"
	}
	return next
}

func handleLogout(c echo.Context) error {
	if err := clearUserSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

type callbackRequest struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

type callbackResponse struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Subjects []string `json:"subjects"`
}

// handleAuthCallback is called by the identity provider after a user
// confirms their account. It merges the new subject into the user that
// owns the email.
func (a *App) handleAuthCallback(c echo.Context) error {
	secret := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(a.Config.Auth.CallbackSecret)) != 1 {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	var req callbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	rec, err := a.Identities.Reconcile(c.Request().Context(), req.Sub, req.Email)
	if errors.Is(err, identity.ErrInvalid) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "sub and email are required"})
	}
	if errors.Is(err, identity.ErrSubjectBound) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "subject is bound to another email"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, callbackResponse{
		ID:       rec.ID,
		Email:    rec.Email,
		Subjects: rec.Subjects,
	})
}
