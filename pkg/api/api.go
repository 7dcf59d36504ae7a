package api

import (
	"strconv"

	"github.com/fako1024/btkeg/pkg/keg"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API denotes a REST API for a keg monitor
type API struct {
	monitor      keg.Monitor
	router       *fiber.App
	collector    *Collector
	promRegistry *prometheus.Registry

	logger keg.Logger
}

// WithLogger sets a logger
func WithLogger(logger keg.Logger) func(*API) {
	return func(api *API) {
		api.logger = logger
	}
}

// New instantiates a new API, executing functional options, if any
func New(m keg.Monitor, options ...func(*API)) *API {

	api := API{
		monitor: m,
		router: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		collector:    NewCollector(m),
		promRegistry: prometheus.NewRegistry(),
		logger:       &keg.NullLogger{},
	}
	for _, option := range options {
		option(&api)
	}

	api.promRegistry.MustRegister(
		api.collector,
		collectors.NewGoCollector(),
	)

	// Setup routes
	api.router.Get("/devices", api.handleDevices())
	api.router.Get("/devices/:id", api.handleDevice())
	api.router.Get("/devices/:id/:port/stats", api.handleStats())
	api.router.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(api.promRegistry, promhttp.HandlerOpts{})))

	return &api
}

// Listen starts to serve the API in the background
func (api *API) Listen(endpoint string) {
	go func() {
		if err := api.router.Listen(endpoint); err != nil {
			api.logger.Errorf("failed to serve API on `%s`: %s", endpoint, err)
		}
	}()
}

// ObserveEvent accounts for a pour / new keg event in the exposed metrics
func (api *API) ObserveEvent(ev keg.Event) {
	api.collector.ObserveEvent(ev)
}

// Shutdown gracefully stops the API
func (api *API) Shutdown() error {
	return api.router.Shutdown()
}

////////////////////////////////////////////////////////////////////////////////

// StatsResponse denotes the response of the stats endpoint
type StatsResponse struct {
	Device          keg.Device  `json:"device"`
	Summary         keg.Summary `json:"summary"`
	VolumeRemaining string      `json:"volume_remaining"`
	Pours           int         `json:"pours"`

	SinceTapSeconds      float64  `json:"since_tap_seconds"`
	SinceLastPourSeconds *float64 `json:"since_last_pour_seconds,omitempty"`
}

func (api *API) handleDevices() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return c.JSON(api.monitor.Devices())
	}
}

func (api *API) handleDevice() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		devices := api.monitor.DevicesByID(c.Params("id"))
		if len(devices) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "unknown device")
		}

		return c.JSON(devices)
	}
}

func (api *API) handleStats() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {

		port, err := strconv.ParseUint(c.Params("port"), 10, 8)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid port: "+c.Params("port"))
		}
		key := keg.DeviceKey(c.Params("id"), uint8(port))
		device, ok := api.monitor.Device(key)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown device")
		}

		unit, err := keg.ParseUnit(c.Query("unit", string(keg.UnitMilliliters)))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		precision := keg.DefaultPrecision
		if val := c.Query("precision"); val != "" {
			if precision, err = strconv.Atoi(val); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid precision: "+val)
			}
		}

		var options []func(*keg.MetricsConfig)
		for param, option := range map[string]func(float64) func(*keg.MetricsConfig){
			"drink_size_ml": keg.WithDrinkSize,
			"flow_rate":     keg.WithFlowRate,
		} {
			if val := c.Query(param); val != "" {
				fval, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "invalid "+param+": "+val)
				}
				options = append(options, option(fval))
			}
		}

		summary, err := keg.Summarize(device.Reading, options...)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		formatted, err := keg.FormatVolume(float64(summary.VolumeRemainingML), unit, precision)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		tracker := api.monitor.Tracker()
		resp := StatsResponse{
			Device:          device,
			Summary:         summary,
			VolumeRemaining: formatted,
			Pours:           tracker.Pours(key),
		}
		if since, ok := tracker.SinceTap(key); ok {
			resp.SinceTapSeconds = since.Seconds()
		}
		if since, ok := tracker.SinceLastPour(key); ok {
			seconds := since.Seconds()
			resp.SinceLastPourSeconds = &seconds
		}

		return c.JSON(resp)
	}
}
