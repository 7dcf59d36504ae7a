package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fako1024/btkeg/pkg/keg"
	"github.com/fako1024/btkeg/pkg/kegtron"
	"github.com/sirupsen/logrus"
)

type config struct {
	id      string
	timeout time.Duration
	unit    string
	json    bool
	debug   bool

	drinkSize float64
}

var log = logrus.New()

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {

	// Parse command line options
	var cfg config

	flag.StringVar(&cfg.id, "id", "", "Restrict scan to a single device ID (e.g. F1EDC6)")
	flag.DurationVar(&cfg.timeout, "t", 10*time.Second, "Scan duration")
	flag.StringVar(&cfg.unit, "unit", string(keg.UnitOunces), "Volume unit (ml, oz, gal, L, pt)")
	flag.BoolVar(&cfg.json, "json", false, "Output devices as JSON")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.Float64Var(&cfg.drinkSize, "drink-size", keg.DefaultDrinkSizeML, "Size of a single drink in ml")
	flag.Parse()

	// Validate the unit prior to scanning
	unit, err := keg.ParseUnit(cfg.unit)
	if err != nil {
		return err
	}
	if cfg.debug {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	options := []func(*kegtron.Kegtron){kegtron.WithLogger(log)}
	if cfg.id != "" {
		options = append(options, kegtron.WithDeviceID(cfg.id))
	}

	log.Infof("scanning for Kegtron devices for %v", cfg.timeout)
	devices, err := kegtron.ScanDevices(ctx, cfg.timeout, options...)
	if err != nil {
		return fmt.Errorf("failed to scan for Kegtron devices: %w", err)
	}
	log.Debugf("scan complete: found %d device(s)", len(devices))

	if cfg.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Println("No Kegtron devices found")
		return nil
	}

	for _, d := range devices {
		summary, err := keg.Summarize(d.Reading, keg.WithDrinkSize(cfg.drinkSize))
		if err != nil {
			return err
		}
		remaining, err := keg.FormatVolume(float64(summary.VolumeRemainingML), unit, keg.DefaultPrecision)
		if err != nil {
			return err
		}

		fmt.Printf("%s (port %d/%d, %s): %q\n", d.ID, d.Reading.PortIndex+1, d.Reading.PortCount, d.Reading.PortState, d.Reading.BeerName)
		fmt.Printf("  %s remaining (%.1f%%), ~%d drinks\n", remaining, summary.PercentRemaining, summary.DrinksRemaining)
	}

	return nil
}
