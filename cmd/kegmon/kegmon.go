package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fako1024/btkeg/pkg/api"
	"github.com/fako1024/btkeg/pkg/keg"
	"github.com/fako1024/btkeg/pkg/kegtron"
	"github.com/fako1024/btkeg/pkg/mock"
	"github.com/sirupsen/logrus"
)

type config struct {
	id       string
	addr     string
	logLevel string
	logJSON  bool
	mock     bool

	minPour        int
	startTolerance int
	resetThreshold int
	lowThreshold   float64
}

var log = logrus.New()

func main() {

	// Parse command line options
	var (
		cfg config
		m   keg.Monitor
	)

	flag.StringVar(&cfg.id, "id", "", "restrict monitoring to a single device ID")
	flag.StringVar(&cfg.addr, "api", "", "serve REST API / metrics on this endpoint (e.g. :8080)")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.logJSON, "log-json", false, "emit structured JSON logs")
	flag.BoolVar(&cfg.mock, "mock", false, "monitor simulated devices instead of the bluetooth adapter")
	flag.IntVar(&cfg.minPour, "min-pour", keg.DefaultMinPourML, "minimum volume increase (ml) to be considered a pour")
	flag.IntVar(&cfg.startTolerance, "start-tolerance", keg.DefaultStartToleranceML, "tolerated start volume change (ml) before assuming a new keg")
	flag.IntVar(&cfg.resetThreshold, "reset-threshold", keg.DefaultResetThresholdML, "dispensed volume drop (ml) signaling a new keg (0: disabled)")
	flag.Float64Var(&cfg.lowThreshold, "low", keg.DefaultLowThreshold, "warn if remaining percentage drops below this value")
	flag.Parse()

	level, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %s", err)
	}
	log.SetLevel(level)
	if cfg.logJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	libLogger, err := keg.NewDefaultLogger(cfg.logLevel, cfg.logJSON)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %s", err)
	}
	defer func() {
		_ = libLogger.Sync()
	}()

	classifier := keg.NewClassifier(
		keg.WithMinPour(cfg.minPour),
		keg.WithStartTolerance(cfg.startTolerance),
		keg.WithResetThreshold(cfg.resetThreshold),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.mock {
		sim, err := newSimulation(ctx, cfg.id, classifier, libLogger)
		if err != nil {
			log.Fatalf("Failed to initialize simulation: %s", err)
		}
		m = sim
	} else {
		options := []func(*kegtron.Kegtron){
			kegtron.WithClassifier(classifier),
			kegtron.WithLogger(libLogger),
		}
		if cfg.id != "" {
			options = append(options, kegtron.WithDeviceID(cfg.id))
		}
		if m, err = kegtron.New(options...); err != nil {
			log.Fatalf("Failed to initialize Kegtron monitor: %s", err)
		}
	}

	var restAPI *api.API
	if cfg.addr != "" {
		restAPI = api.New(m, api.WithLogger(libLogger))
		restAPI.Listen(cfg.addr)
		log.Infof("Serving API on %s", cfg.addr)
	}

	m.SetDataHandler(func(d keg.Device) {
		log.Debugf("Read DATA from %s: %q, %d ml remaining (%.1f%%)", d.Key(), d.Reading.BeerName, d.Reading.VolumeRemainingML(), d.Reading.PercentRemaining())
		if d.Reading.Degraded {
			log.Warnf("Beer name of %s is not valid UTF-8: %q", d.Key(), d.Reading.BeerName)
		}
	})

	eventChan := make(chan keg.Event, 256)
	m.SetEventChannel(eventChan)

	stateChan := make(chan keg.ConnectionStatus)
	m.SetStateChangeChannel(stateChan)

	go func() {
		for st := range stateChan {
			log.Infof("State change: %v (error: %v)", st.State, st.Error)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Infof("Got signal, terminating monitor")
			if restAPI != nil {
				if err := restAPI.Shutdown(); err != nil {
					log.Warnf("Failed to shut down API: %s", err)
				}
			}
			if err := m.Close(); err != nil {
				log.Warnf("Failed to close monitor: %s", err)
			}
			return
		case ev := <-eventChan:
			handleEvent(m, restAPI, ev, cfg.lowThreshold)
		}
	}
}

func handleEvent(m keg.Monitor, restAPI *api.API, ev keg.Event, lowThreshold float64) {
	if restAPI != nil {
		restAPI.ObserveEvent(ev)
	}

	switch ev.Type {
	case keg.EventPour:
		summary, err := keg.Summarize(ev.Current)
		if err != nil {
			log.Warnf("Failed to summarize reading of %s: %s", ev.DeviceKey, err)
			return
		}
		pour, _ := keg.FormatVolume(float64(ev.AmountML), keg.UnitOunces, keg.DefaultPrecision)
		log.Infof("Pour on %s (%q): %d ml / %s, %.1f%% (~%d drinks) left, pour #%d since tap",
			ev.DeviceKey, ev.Current.BeerName, ev.AmountML, pour, summary.PercentRemaining, summary.DrinksRemaining, m.Tracker().Pours(ev.DeviceKey))
		if ev.Current.IsLow(lowThreshold) {
			log.Warnf("Keg on %s (%q) is running low: %.1f%% remaining", ev.DeviceKey, ev.Current.BeerName, summary.PercentRemaining)
		}
	case keg.EventNewKeg:
		log.Infof("New keg on %s: %q, %d ml (previously %q with %d ml left)",
			ev.DeviceKey, ev.Current.BeerName, ev.Current.VolumeStartML, ev.Previous.BeerName, ev.Previous.VolumeRemainingML())
	}
}

func newSimulation(ctx context.Context, id string, classifier keg.Classifier, logger keg.Logger) (*mock.Mock, error) {
	options := []func(*mock.Mock){
		mock.WithClassifier(classifier),
		mock.WithLogger(logger),
		mock.WithInterval(2*time.Second),
	}
	if id != "" {
		options = append(options, mock.WithDeviceID(id))
	}
	sim, err := mock.New(options...)
	if err != nil {
		return nil, err
	}

	keys := []string{
		sim.AddKeg("F1EDC6", keg.Reading{
			KegSizeML:     keg.KegSizeSixthBarrel,
			VolumeStartML: keg.KegSizeSixthBarrel,
			PortCount:     2,
			PortIndex:     0,
			PortState:     keg.PortStateEnabled,
			BeerName:      "Kolsch",
		}),
		sim.AddKeg("F1EDC6", keg.Reading{
			KegSizeML:     keg.KegSizeCornelius,
			VolumeStartML: keg.KegSizeCornelius,
			PortCount:     2,
			PortIndex:     1,
			PortState:     keg.PortStateEnabled,
			BeerName:      "IPA",
		}),
	}

	go sim.Run(ctx)

	// Pour randomly, tapping a new keg whenever one runs dry
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			key := keys[rand.Intn(len(keys))]
			if d, ok := sim.Device(key); ok && d.Reading.IsEmpty() {
				if err := sim.Tap(key, d.Reading.KegSizeML, d.Reading.BeerName); err != nil {
					log.Warnf("Failed to tap simulated keg: %s", err)
				}
				continue
			}
			if err := sim.Pour(key, 200+rand.Intn(400)); err != nil {
				log.Warnf("Failed to pour from simulated keg: %s", err)
			}
		}
	}()

	return sim, nil
}
