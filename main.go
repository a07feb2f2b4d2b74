package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"creatorreach/api"
	"creatorreach/config"
	"creatorreach/handlers"
	"creatorreach/internal/database"
	"creatorreach/models"
	"creatorreach/services/activity"
	"creatorreach/services/bot"
	"creatorreach/services/tiktok"
	"creatorreach/utils"
)

func main() {
	settingsPath := flag.String("settings", "./data/settings.json", "path to the settings file")
	flag.Parse()

	if err := run(*settingsPath); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(settingsPath string) error {
	settings, err := config.NewManager(settingsPath).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	db, err := database.NewDB(database.Config{
		DatabasePath: filepath.Join(settings.DataDir, "creatorreach.db"),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	store := database.NewStore(db)

	activities := activity.NewService(store.Activities, filepath.Join(settings.DataDir, "activity.log"))
	defer activities.Close()

	newBackend := func(mode string) (tiktok.Backend, error) {
		switch mode {
		case models.ModeBrowser:
			return tiktok.NewBrowserDriver(settings.Browser), nil
		case models.ModeAPI:
			return tiktok.NewAPIClient(settings.API), nil
		default:
			return nil, fmt.Errorf("unknown mode %q", mode)
		}
	}

	botSvc := bot.NewService(store, activities, newBackend)
	if err := botSvc.Initialize(); err != nil {
		return fmt.Errorf("initialize bot: %w", err)
	}

	router := utils.NewRouter(settings.AllowedOrigins)
	registerRoutes(router, settings, store, activities, botSvc)

	server := &http.Server{
		Addr:         settings.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] listening on %s", settings.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		log.Printf("[main] received %s, shutting down", sig)
	}

	// Tear the bot down first so the backend releases its resources before the
	// process exits.
	botSvc.EmergencyStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	log.Printf("[main] shutdown complete")
	return nil
}

func registerRoutes(router *mux.Router, settings config.Settings, store *database.Store, activities *activity.Service, botSvc *bot.Service) {
	perMinute := settings.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 120
	}
	burst := settings.RateLimitBurst
	if burst <= 0 {
		burst = 30
	}
	limiter := api.NewIPRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)

	r := router.PathPrefix("/api").Subrouter()
	r.Use(api.TokenAuthMiddleware(settings.DashboardToken))
	r.Use(api.RateLimitMiddleware(limiter))

	botHandler := handlers.NewBotHandler(botSvc)
	r.HandleFunc("/bot/start", botHandler.Start).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/bot/pause", botHandler.Pause).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/bot/resume", botHandler.Resume).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/bot/stop", botHandler.Stop).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/bot/emergency-stop", botHandler.EmergencyStop).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/bot/status", botHandler.Status).Methods(http.MethodGet, http.MethodOptions)

	configHandler := handlers.NewConfigHandler(store)
	r.HandleFunc("/config", configHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/config", configHandler.Update).Methods(http.MethodPut, http.MethodOptions)

	creatorsHandler := handlers.NewCreatorsHandler(store)
	r.HandleFunc("/creators", creatorsHandler.List).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/creators/invitable", creatorsHandler.Invitable).Methods(http.MethodGet, http.MethodOptions)

	activitiesHandler := handlers.NewActivitiesHandler(activities)
	r.HandleFunc("/activities", activitiesHandler.Recent).Methods(http.MethodGet, http.MethodOptions)

	metricsHandler := handlers.NewMetricsHandler(store, botSvc)
	r.HandleFunc("/metrics", metricsHandler.Get).Methods(http.MethodGet, http.MethodOptions)
}
