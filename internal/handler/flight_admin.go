package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-booking/internal/model"
	"github.com/iliyamo/flight-booking/internal/repository"
	"github.com/iliyamo/flight-booking/internal/utils"
)

// FlightAdminHandler covers the ADMIN-only flight management routes.
// The role check itself lives in middleware; handlers here only
// validate input and talk to the repository.
type FlightAdminHandler struct {
	Flights *repository.FlightRepo
}

func NewFlightAdminHandler(f *repository.FlightRepo) *FlightAdminHandler {
	return &FlightAdminHandler{Flights: f}
}

type fareClassReq struct {
	Name       string `json:"name"`
	PriceCents uint32 `json:"price_cents"`
	SeatsTotal uint32 `json:"seats_total"`
}

type createFlightReq struct {
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Airline        string         `json:"airline"`
	Origin         string         `json:"origin"`
	Destination    string         `json:"destination"`
	DepartureAt    time.Time      `json:"departure_at"`
	ArrivalAt      time.Time      `json:"arrival_at"`
	Duration       string         `json:"duration"`
	TotalSeats     uint32         `json:"total_seats"`
	BasePriceCents uint32         `json:"base_price_cents"`
	Status         string         `json:"status"`
	Gate           string         `json:"gate"`
	Terminal       string         `json:"terminal"`
	Aircraft       string         `json:"aircraft"`
	Classes        []fareClassReq `json:"classes"`
}

// Create adds a flight: POST /v1/flights (ADMIN).
//
// When no code is supplied one is generated from the airline prefix.
// When no fare classes are supplied a single ECONOMY class is
// synthesized from the base price and total seats, so every flight has
// at least one bookable class.
func (h *FlightAdminHandler) Create(c echo.Context) error {
	var req createFlightReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Airline = strings.TrimSpace(req.Airline)
	req.Origin = strings.ToUpper(strings.TrimSpace(req.Origin))
	req.Destination = strings.ToUpper(strings.TrimSpace(req.Destination))
	if req.Name == "" || req.Airline == "" || req.Origin == "" || req.Destination == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, airline, origin and destination required"})
	}
	if req.Origin == req.Destination {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin and destination must differ"})
	}
	if req.DepartureAt.IsZero() || req.ArrivalAt.IsZero() || !req.ArrivalAt.After(req.DepartureAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "arrival_at must be after departure_at"})
	}
	if req.TotalSeats == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must be positive"})
	}
	if req.BasePriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "base_price_cents must be positive"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		status = model.FlightScheduled
	}
	switch status {
	case model.FlightScheduled, model.FlightBoarding, model.FlightDeparted,
		model.FlightArrived, model.FlightCancelled, model.FlightDelayed:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		generated, err := utils.NewFlightCode(req.Airline)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate code failed"})
		}
		code = generated
	}

	classes := make([]model.FareClass, 0, len(req.Classes))
	var allocated uint32
	for _, fc := range req.Classes {
		name := strings.ToUpper(strings.TrimSpace(fc.Name))
		if name == "" || fc.PriceCents == 0 || fc.SeatsTotal == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each class needs name, price_cents and seats_total"})
		}
		allocated += fc.SeatsTotal
		classes = append(classes, model.FareClass{
			Name:       name,
			PriceCents: fc.PriceCents,
			SeatsTotal: fc.SeatsTotal,
		})
	}
	if allocated > req.TotalSeats {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "class seat allocation exceeds total_seats"})
	}
	if len(classes) == 0 {
		classes = append(classes, model.FareClass{
			Name:       "ECONOMY",
			PriceCents: req.BasePriceCents,
			SeatsTotal: req.TotalSeats,
		})
	}

	flight := &model.Flight{
		Code:           code,
		Name:           strings.TrimSpace(req.Name),
		Airline:        req.Airline,
		Origin:         req.Origin,
		Destination:    req.Destination,
		DepartureAt:    req.DepartureAt.UTC(),
		ArrivalAt:      req.ArrivalAt.UTC(),
		Duration:       strings.TrimSpace(req.Duration),
		TotalSeats:     req.TotalSeats,
		BasePriceCents: req.BasePriceCents,
		Status:         status,
		Gate:           strings.TrimSpace(req.Gate),
		Terminal:       strings.TrimSpace(req.Terminal),
		Aircraft:       strings.TrimSpace(req.Aircraft),
		Classes:        classes,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Flights.Create(ctx, flight); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return c.JSON(http.StatusConflict, echo.Map{"error": "flight code already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create flight failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "flight created", "flight": flight})
}

type updateFlightReq struct {
	Name           *string    `json:"name"`
	Airline        *string    `json:"airline"`
	Origin         *string    `json:"origin"`
	Destination    *string    `json:"destination"`
	DepartureAt    *time.Time `json:"departure_at"`
	ArrivalAt      *time.Time `json:"arrival_at"`
	Duration       *string    `json:"duration"`
	BasePriceCents *uint32    `json:"base_price_cents"`
	Status         *string    `json:"status"`
	Gate           *string    `json:"gate"`
	Terminal       *string    `json:"terminal"`
	Aircraft       *string    `json:"aircraft"`
}

// Update patches flight fields: PUT /v1/flights/:id (ADMIN).
// Seat counters are deliberately not reachable from here; capacity
// only moves through booking mutations.
func (h *FlightAdminHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid flight id"})
	}
	var req updateFlightReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
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

	if req.Name != nil {
		flight.Name = strings.TrimSpace(*req.Name)
	}
	if req.Airline != nil {
		flight.Airline = strings.TrimSpace(*req.Airline)
	}
	if req.Origin != nil {
		flight.Origin = strings.ToUpper(strings.TrimSpace(*req.Origin))
	}
	if req.Destination != nil {
		flight.Destination = strings.ToUpper(strings.TrimSpace(*req.Destination))
	}
	if req.DepartureAt != nil {
		flight.DepartureAt = req.DepartureAt.UTC()
	}
	if req.ArrivalAt != nil {
		flight.ArrivalAt = req.ArrivalAt.UTC()
	}
	if req.Duration != nil {
		flight.Duration = strings.TrimSpace(*req.Duration)
	}
	if req.BasePriceCents != nil {
		if *req.BasePriceCents == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "base_price_cents must be positive"})
		}
		flight.BasePriceCents = *req.BasePriceCents
	}
	if req.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*req.Status))
		switch status {
		case model.FlightScheduled, model.FlightBoarding, model.FlightDeparted,
			model.FlightArrived, model.FlightCancelled, model.FlightDelayed:
			flight.Status = status
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
	}
	if req.Gate != nil {
		flight.Gate = strings.TrimSpace(*req.Gate)
	}
	if req.Terminal != nil {
		flight.Terminal = strings.TrimSpace(*req.Terminal)
	}
	if req.Aircraft != nil {
		flight.Aircraft = strings.TrimSpace(*req.Aircraft)
	}
	if !flight.ArrivalAt.After(flight.DepartureAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "arrival_at must be after departure_at"})
	}
	if flight.Origin == flight.Destination {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin and destination must differ"})
	}

	if err := h.Flights.Update(ctx, flight); err != nil {
		if err == repository.ErrFlightNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "flight not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update flight failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "flight updated", "flight": flight})
}

// Delete removes a flight and its fare classes:
// DELETE /v1/flights/:id (ADMIN).  Existing bookings keep their route
// snapshot and stay readable; cancelling them later tolerates the
// missing flight.
func (h *FlightAdminHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid flight id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Flights.Delete(ctx, id); err != nil {
		if err == repository.ErrFlightNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "flight not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete flight failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "flight deleted"})
}
