package middleware

import (
	"net/http"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

// UserContextKey is where the verified user ID is stored on the echo context.
const UserContextKey = "userID"

// SessionName is the cookie session written by the external auth provider at
// handshake time.
const SessionName = "skillverse_session"

// sessionUserKey is the session value holding the verified user ID.
const sessionUserKey = "user_id"

// Auth extracts the verified user identity from the cookie session and makes
// it available to downstream handlers. The engine trusts this identity and
// performs no credential checks itself; authentication is owned by the
// external identity provider.
func Auth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := session.Get(SessionName, c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
			}

			userID, ok := sess.Values[sessionUserKey].(string)
			if !ok || userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			c.Set(UserContextKey, userID)
			return next(c)
		}
	}
}

// UserID returns the verified user ID set by Auth, or "" when absent.
func UserID(c echo.Context) string {
	userID, _ := c.Get(UserContextKey).(string)
	return userID
}
