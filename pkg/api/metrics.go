package api

import (
	"strconv"

	"github.com/fako1024/btkeg/pkg/keg"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "btkeg"

var deviceLabels = []string{"device", "port", "beer"}

// Collector exposes the state of all devices known to a monitor as Prometheus metrics,
// along with counters for the events it was fed
type Collector struct {
	registry keg.Registry

	kegSize          *prometheus.Desc
	volumeRemaining  *prometheus.Desc
	volumeDispensed  *prometheus.Desc
	percentRemaining *prometheus.Desc
	lastSeen         *prometheus.Desc

	pours    *prometheus.CounterVec
	pouredML *prometheus.CounterVec
	newKegs  *prometheus.CounterVec
}

// NewCollector instantiates a new Collector for the provided device registry
func NewCollector(registry keg.Registry) *Collector {
	return &Collector{
		registry: registry,

		kegSize: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "keg", "size_ml"),
			"Configured keg size in milliliters", deviceLabels, nil,
		),
		volumeRemaining: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "keg", "volume_remaining_ml"),
			"Remaining volume in milliliters", deviceLabels, nil,
		),
		volumeDispensed: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "keg", "volume_dispensed_ml"),
			"Cumulative volume dispensed since the keg was tapped", deviceLabels, nil,
		),
		percentRemaining: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "keg", "percent_remaining"),
			"Remaining volume relative to the keg size", deviceLabels, nil,
		),
		lastSeen: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "device", "last_seen_timestamp_seconds"),
			"Time of the last received advertisement", deviceLabels, nil,
		),

		pours: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "events",
				Name:      "pours_total",
				Help:      "Total number of detected pours",
			},
			[]string{"device", "port"},
		),
		pouredML: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "events",
				Name:      "poured_ml_total",
				Help:      "Total volume of detected pours in milliliters",
			},
			[]string{"device", "port"},
		),
		newKegs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "events",
				Name:      "new_kegs_total",
				Help:      "Total number of detected keg replacements",
			},
			[]string{"device", "port"},
		),
	}
}

// ObserveEvent accounts for a pour / new keg event
func (c *Collector) ObserveEvent(ev keg.Event) {
	d, ok := c.registry.Device(ev.DeviceKey)
	if !ok {
		return
	}
	port := strconv.Itoa(int(d.Reading.PortIndex))

	switch ev.Type {
	case keg.EventPour:
		c.pours.WithLabelValues(d.ID, port).Inc()
		c.pouredML.WithLabelValues(d.ID, port).Add(float64(ev.AmountML))
	case keg.EventNewKeg:
		c.newKegs.WithLabelValues(d.ID, port).Inc()
	}
}

// Describe fulfils the prometheus.Collector interface
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.kegSize
	ch <- c.volumeRemaining
	ch <- c.volumeDispensed
	ch <- c.percentRemaining
	ch <- c.lastSeen

	c.pours.Describe(ch)
	c.pouredML.Describe(ch)
	c.newKegs.Describe(ch)
}

// Collect fulfils the prometheus.Collector interface
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, d := range c.registry.Devices() {
		labels := []string{d.ID, strconv.Itoa(int(d.Reading.PortIndex)), d.Reading.BeerName}

		ch <- prometheus.MustNewConstMetric(c.kegSize, prometheus.GaugeValue, float64(d.Reading.KegSizeML), labels...)
		ch <- prometheus.MustNewConstMetric(c.volumeRemaining, prometheus.GaugeValue, float64(d.Reading.VolumeRemainingML()), labels...)
		ch <- prometheus.MustNewConstMetric(c.volumeDispensed, prometheus.GaugeValue, float64(d.Reading.VolumeDispensedML), labels...)
		ch <- prometheus.MustNewConstMetric(c.percentRemaining, prometheus.GaugeValue, d.Reading.PercentRemaining(), labels...)
		if !d.LastSeen.IsZero() {
			ch <- prometheus.MustNewConstMetric(c.lastSeen, prometheus.GaugeValue, float64(d.LastSeen.Unix()), labels...)
		}
	}

	c.pours.Collect(ch)
	c.pouredML.Collect(ch)
	c.newKegs.Collect(ch)
}
