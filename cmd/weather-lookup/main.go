package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-lookup/internal/api/http"
	"github.com/i474232898/weather-lookup/internal/config"
	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/scheduler"
	"github.com/i474232898/weather-lookup/internal/screen"
	"github.com/i474232898/weather-lookup/internal/session"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
	"github.com/i474232898/weather-lookup/internal/weather/providers"
)

var (
	cfg    *config.AppConfig
	output string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		logger.Fatalf("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "weather-lookup",
		Short:         "Look up current weather for a city or a coordinate",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.SetLevel(cfg.LogLevel)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the selected city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd, func(ctrl *screen.Controller) (screen.DisplayState, error) {
				return ctrl.State()
			})
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search [city]",
		Short: "Search for a city by name",
		Long:  "Search for a city by name. A result is only offered when its name matches the query exactly, ignoring case. An empty query shows the selected city.",
		RunE: func(cmd *cobra.Command, args []string) error {
			selectIt, _ := cmd.Flags().GetBool("select")
			query := strings.Join(args, " ")

			return withController(cmd, func(ctrl *screen.Controller) (screen.DisplayState, error) {
				s, err := ctrl.Search(cmd.Context(), query)
				if err != nil || !selectIt || s.Kind != screen.SearchResultAvailable {
					return s, err
				}
				return ctrl.Confirm(cmd.Context())
			})
		},
	}
	searchCmd.Flags().BoolP("select", "s", false, "Select the city when it is found")

	locateCmd := &cobra.Command{
		Use:     "locate <lat> <lon>",
		Short:   "Select the city at a coordinate",
		Example: "  weather-lookup locate -- 40.7128 -74.0060",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := parseCoordinate(args[0], args[1])
			if err != nil {
				return err
			}
			return withController(cmd, func(ctrl *screen.Controller) (screen.DisplayState, error) {
				return ctrl.LocationGranted(cmd.Context(), coord.Lat, coord.Lon)
			})
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	rootCmd.AddCommand(showCmd, searchCmd, locateCmd, serveCmd)
	return rootCmd
}

var validate = validator.New()

func parseCoordinate(latArg, lonArg string) (weather.Coordinate, error) {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil {
		return weather.Coordinate{}, fmt.Errorf("invalid latitude %q", latArg)
	}
	lon, err := strconv.ParseFloat(lonArg, 64)
	if err != nil {
		return weather.Coordinate{}, fmt.Errorf("invalid longitude %q", lonArg)
	}

	coord := weather.Coordinate{Lat: lat, Lon: lon}
	if err := validate.Struct(coord); err != nil {
		return weather.Coordinate{}, fmt.Errorf("coordinate out of range: %w", err)
	}
	return coord, nil
}

// deps holds what every command needs: the store and the lookup service.
type deps struct {
	store   weather.Store
	service *weather.Service
}

func newDeps() (*deps, error) {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	geo, cond, err := providers.Build(httpClient, providers.Selection{
		Source:       cfg.Provider,
		Geocoder:     cfg.Geocoder,
		Conditions:   cfg.ConditionsProvider,
		BaseURL:      cfg.BaseURL,
		Units:        cfg.Units,
		GoogleAPIKey: cfg.GoogleAPIKey,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &deps{
		store:   st,
		service: weather.NewService(geo, cond),
	}, nil
}

func (d *deps) newController(ctx context.Context) *screen.Controller {
	return screen.New(ctx, d.service, d.store, cfg.WeatherAPIKey)
}

func (d *deps) Close() {
	if err := d.store.Close(); err != nil {
		logger.Errorf("failed to close store: %v", err)
	}
}

// withController runs one intent against a fresh controller and renders the
// resulting state to the command's output. The controller is closed before
// the store so queued saves land first.
func withController(cmd *cobra.Command, fn func(*screen.Controller) (screen.DisplayState, error)) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ctrl := d.newController(cmd.Context())
	s, err := fn(ctrl)
	ctrl.Close()
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), output, s)
}

func serve(ctx context.Context) error {
	d, err := newDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	sessions := session.NewRegistry(d.newController)
	defer sessions.CloseAll()

	// Scheduler that closes idle sessions.
	sched := scheduler.New(sessions, cfg.SessionTTL, cfg.SessionSweepInterval)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-lookup",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, sessions)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on :%s", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorf("error during shutdown: %v", err)
	}
	return nil
}
