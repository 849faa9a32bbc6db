package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/flight-booking/internal/config"
	"github.com/iliyamo/flight-booking/internal/database"
	"github.com/iliyamo/flight-booking/internal/handler"
	"github.com/iliyamo/flight-booking/internal/middleware"
	"github.com/iliyamo/flight-booking/internal/queue"
	"github.com/iliyamo/flight-booking/internal/repository"
	"github.com/iliyamo/flight-booking/internal/router"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// Redis backs the rate limiter and the response cache; both turn
	// into no-ops when the client is nil.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and caching disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	flights := repository.NewFlightRepo(db)
	bookings := repository.NewBookingRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	flightH := handler.NewFlightHandler(flights)
	flightAdminH := handler.NewFlightAdminHandler(flights)
	bookingH := handler.NewBookingHandler(bookings, flights)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterFlights(e, flightH, cache)
	router.RegisterFlightAdmin(e, flightAdminH, cfg.JWTSecret)
	router.RegisterBookings(e, bookingH, cfg.JWTSecret)

	// Background consumer writes booking events to logs/booking.log and
	// reconnects on broker failures; it never takes the API down.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	log.Printf("starting server on :%s (env=%s)", cfg.Port, cfg.Env)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
