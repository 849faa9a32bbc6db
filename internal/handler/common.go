package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-booking/internal/model"
)

// getUserID extracts the authenticated user's ID from the Echo context.
// JWTAuth stores the raw "sub" claim, which decodes as float64 for
// numeric IDs; string and integer forms are handled for completeness.
func getUserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), true
	case uint64:
		return v, true
	case int64:
		return uint64(v), true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// isAdmin reports whether the authenticated user carries the ADMIN role.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == model.RoleAdmin
}
