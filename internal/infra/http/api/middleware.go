package api

import (
	"net/http"

	"apphost/internal/domain/model"

	"github.com/labstack/echo/v4"
)

const userKey = "user"

// loadUser stores the signed-in user, if any, in the echo context.
func loadUser(identify func(*http.Request) *model.User) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if user := identify(c.Request()); user != nil {
				c.Set(userKey, user)
			}
			return next(c)
		}
	}
}

func currentUser(c echo.Context) *model.User {
	user, _ := c.Get(userKey).(*model.User)
	return user
}

// requireSession rejects requests without a signed-in user.
func requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return next(c)
	}
}

// requireRole rejects users whose role is not listed.
func requireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := currentUser(c)
			if user == nil || !allowed[user.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// requireGrant rejects users whose access grant does not cover the :folder
// path parameter.
func requireGrant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !currentUser(c).MayAccess(c.Param("folder")) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return next(c)
	}
}

// requireSelfOrAdmin lets admins through, and everybody else only for their
// own :id.
func requireSelfOrAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		if user == nil || (!user.IsAdmin() && user.ID != c.Param("id")) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return next(c)
	}
}
