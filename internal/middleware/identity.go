package middleware

// identity.go defines helper functions shared across middleware files.
// Currently it provides the user identifier used by rate-limit keys.
// When no user is authenticated, "anon" is returned so guests share a
// bucket per IP.

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// currentUserID extracts the user identifier placed in context by
// JWTAuth.  The sub claim decodes as float64 for numeric IDs, so all
// plausible types are handled.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	}
	return "anon"
}
