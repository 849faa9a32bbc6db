package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-booking/internal/handler"
	"github.com/iliyamo/flight-booking/internal/middleware"
	"github.com/iliyamo/flight-booking/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check, used by load balancers and
// monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me sits behind the JWT
// middleware.  Logout is reachable without a JWT so a session can be
// closed with just a refresh token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	auth.GET("/me", a.Me)
}

// RegisterFlights registers the public flight browse endpoints.  They
// carry no auth; the optional cache middleware keeps repeated browse
// queries off the database.
func RegisterFlights(e *echo.Echo, f *handler.FlightHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/flights")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("", f.List)
	g.GET("/:id", f.GetByID)
	g.POST("/search", f.Search)
}

// RegisterFlightAdmin registers flight management routes for admins.
func RegisterFlightAdmin(e *echo.Echo, fa *handler.FlightAdminHandler, jwtSecret string) {
	g := e.Group("/v1/flights")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))
	g.POST("", fa.Create)
	g.PUT("/:id", fa.Update)
	g.DELETE("/:id", fa.Delete)
}

// RegisterBookings registers the booking lifecycle routes.  All of
// them require a valid access token; ownership checks beyond the role
// gate happen inside the handlers.  Listing every booking is admin
// only.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/bookings")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))

	g.POST("", b.Create)
	g.GET("/my-bookings", b.MyBookings)
	g.GET("/:id", b.GetByID)
	g.PUT("/:id", b.UpdateStatus)
	g.DELETE("/:id", b.Cancel)
	g.PUT("/:id/reschedule", b.Reschedule)
	g.GET("/:id/reschedule-options", b.RescheduleOptions)

	admin := e.Group("/v1/bookings")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.GET("", b.ListAll)
}
