package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"apphost/internal/domain/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ErrInvalidSession is returned for missing, malformed, expired or
// wrongly signed session tokens.
var ErrInvalidSession = errors.New("invalid session")

// UserGetter loads a user by id.
type UserGetter interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// Sessions issues and verifies the signed session cookie. The token only
// carries the user id; role and grants are read from the store on every
// request so changes apply immediately.
type Sessions struct {
	secret []byte
	cookie string
	domain string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessions creates a cookie issuer. domain scopes the cookie to the
// control plane and every application subdomain.
func NewSessions(secret, cookie, domain string, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		cookie: cookie,
		domain: strings.TrimPrefix(domain, "."),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// CookieName is the name of the session cookie.
func (s *Sessions) CookieName() string { return s.cookie }

// Issue signs a token for userID.
func (s *Sessions) Issue(userID string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies raw and returns the user id it was issued for.
func (s *Sessions) Parse(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidSession
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidSession
	}
	return sub, nil
}

// SetCookie issues a token for userID and attaches it to the response.
func (s *Sessions) SetCookie(c echo.Context, userID string) error {
	token, exp, err := s.Issue(userID)
	if err != nil {
		return err
	}
	c.SetCookie(s.newCookie(token, exp))
	return nil
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(c echo.Context) {
	cookie := s.newCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	c.SetCookie(cookie)
}

func (s *Sessions) newCookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie,
		Value:    value,
		Path:     "/",
		Domain:   s.domain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Identify returns a function resolving the signed-in user of a request,
// or nil when there is none.
func (s *Sessions) Identify(users UserGetter) func(r *http.Request) *model.User {
	return func(r *http.Request) *model.User {
		cookie, err := r.Cookie(s.cookie)
		if err != nil {
			return nil
		}
		id, err := s.Parse(cookie.Value)
		if err != nil {
			return nil
		}
		user, err := users.Get(r.Context(), id)
		if err != nil {
			return nil
		}
		return user
	}
}
