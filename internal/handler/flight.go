package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-booking/internal/repository"
)

// FlightHandler serves the public flight browse endpoints.  All three
// are read-only and sit behind the Redis response cache.
type FlightHandler struct {
	Flights *repository.FlightRepo
}

func NewFlightHandler(f *repository.FlightRepo) *FlightHandler {
	return &FlightHandler{Flights: f}
}

// parseDay interprets a "2006-01-02" value as the start of that UTC day.
func parseDay(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func parseCents(s string) uint32 {
	n, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	return uint32(n)
}

// List returns SCHEDULED flights, ascending by departure:
// GET /v1/flights.
//
// Optional query filters: origin, destination, date (YYYY-MM-DD, UTC
// day window), min_price / max_price (cents, against the base fare).
// Without a date only future departures are returned.
func (h *FlightHandler) List(c echo.Context) error {
	q := repository.FlightSearchQuery{
		Origin:        c.QueryParam("origin"),
		Destination:   c.QueryParam("destination"),
		MinPriceCents: parseCents(c.QueryParam("min_price")),
		MaxPriceCents: parseCents(c.QueryParam("max_price")),
	}
	if raw := c.QueryParam("date"); raw != "" {
		day, ok := parseDay(raw)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		q.Date = day
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	flights, err := h.Flights.Search(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"flights": flights, "count": len(flights)})
}

// GetByID returns one flight with its fare classes and derived
// availability: GET /v1/flights/:id.
func (h *FlightHandler) GetByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid flight id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	flight, err := h.Flights.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrFlightNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "flight not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"flight": flight})
}

type searchFlightsReq struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
	Passengers  uint32 `json:"passengers"`
}

// Search finds flights able to seat a party on a given day:
// POST /v1/flights/search.
func (h *FlightHandler) Search(c echo.Context) error {
	var req searchFlightsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin and destination required"})
	}
	if req.Passengers == 0 {
		req.Passengers = 1
	}
	q := repository.FlightSearchQuery{
		Origin:      req.Origin,
		Destination: req.Destination,
		MinSeats:    req.Passengers,
	}
	if req.Date != "" {
		day, ok := parseDay(req.Date)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		q.Date = day
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	flights, err := h.Flights.Search(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"flights": flights, "count": len(flights)})
}
