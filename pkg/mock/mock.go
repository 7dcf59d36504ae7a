package mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fako1024/btkeg/pkg/keg"
	"github.com/fako1024/btkeg/pkg/kegtron"
)

const (
	defaultAddressPrefix = "00:00:00:00:00:"
	defaultInterval      = time.Second
)

// ErrUnknownKeg denotes an operation on a keg that was never added
var ErrUnknownKeg = errors.New("unknown keg")

// Mock denotes a mock keg monitor: simulated Kegtron devices broadcast advertisements
// that run through the same decoding / classification pipeline as real ones
type Mock struct {
	*keg.Dispatcher

	classifier keg.Classifier
	deviceID   string
	interval   time.Duration
	now        func() time.Time

	mu   sync.Mutex
	kegs map[string]*simulatedKeg

	doneChan  chan struct{}
	closeOnce sync.Once

	logger keg.Logger
}

type simulatedKeg struct {
	id      string
	address string
	reading keg.Reading
}

// New instantiates a new Mock keg monitor, executing functional options, if any
func New(options ...func(*Mock)) (*Mock, error) {

	// Initialize a new instance of a Mock monitor
	m := &Mock{
		classifier: keg.NewClassifier(),
		interval:   defaultInterval,
		now:        time.Now,
		kegs:       make(map[string]*simulatedKeg),
		doneChan:   make(chan struct{}),
		logger:     &keg.NullLogger{},
	}
	for _, option := range options {
		option(m)
	}
	if m.interval <= 0 {
		return nil, fmt.Errorf("invalid broadcast interval: %v", m.interval)
	}
	m.Dispatcher = keg.NewDispatcher(m.classifier)
	m.SetStatus(keg.StateScanning, nil)

	return m, nil
}

// WithClassifier sets the classifier used to detect pours and new kegs
func WithClassifier(classifier keg.Classifier) func(*Mock) {
	return func(m *Mock) {
		m.classifier = classifier
	}
}

// WithDeviceID restricts the monitor to a specific device ID (case-insensitive)
func WithDeviceID(deviceID string) func(*Mock) {
	return func(m *Mock) {
		m.deviceID = deviceID
	}
}

// WithInterval sets the broadcast interval used by Run()
func WithInterval(interval time.Duration) func(*Mock) {
	return func(m *Mock) {
		m.interval = interval
	}
}

// WithLogger sets a logger
func WithLogger(logger keg.Logger) func(*Mock) {
	return func(m *Mock) {
		m.logger = logger
	}
}

// WithClock sets the time source used to stamp observations
func WithClock(now func() time.Time) func(*Mock) {
	return func(m *Mock) {
		m.now = now
	}
}

// AddKeg adds a simulated device port broadcasting the provided reading (the ID must
// be hexadecimal, as advertised by real devices)
func (m *Mock) AddKeg(id string, reading keg.Reading) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keg.DeviceKey(id, reading.PortIndex)
	m.kegs[key] = &simulatedKeg{
		id:      strings.ToUpper(id),
		address: fmt.Sprintf("%s%02X", defaultAddressPrefix, len(m.kegs)),
		reading: reading,
	}

	return key
}

// Pour simulates dispensing from a simulated keg (the cumulative counter saturates
// at its maximum value)
func (m *Mock) Pour(key string, ml int) error {
	if ml <= 0 {
		return fmt.Errorf("invalid pour volume: %d", ml)
	}

	return m.update(key, func(r *keg.Reading) {
		r.VolumeDispensedML = uint16(min(int(r.VolumeDispensedML)+ml, 0xFFFF))
	})
}

// Tap simulates connecting a fresh keg to a simulated port
func (m *Mock) Tap(key string, startML uint16, beerName string) error {
	return m.update(key, func(r *keg.Reading) {
		r.VolumeStartML = startML
		r.VolumeDispensedML = 0
		r.BeerName = beerName
	})
}

// Broadcast emits one advertisement per simulated keg (in key order)
func (m *Mock) Broadcast() {
	m.mu.Lock()
	keys := make([]string, 0, len(m.kegs))
	for key := range m.kegs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	advs := make([]kegtron.Advertisement, 0, len(keys))
	for _, key := range keys {
		k := m.kegs[key]
		advs = append(advs, kegtron.NewAdvertisement(
			fmt.Sprintf("%s %s", kegtron.DefaultNamePrefix, k.id), k.address, kegtron.Encode(k.reading)),
		)
	}
	m.mu.Unlock()

	for _, adv := range advs {
		if err := m.Inject(adv); err != nil {
			m.logger.Warnf("failed to inject simulated advertisement: %s", err)
		}
	}
}

// Inject feeds a raw advertisement into the monitor, as if received over the air.
// Advertisements of unrelated devices (or of other devices if restricted to a device
// ID) are ignored
func (m *Mock) Inject(a kegtron.Advertisement) error {
	device, err := kegtron.DeviceFromAdvertisement(a, m.now())
	if err != nil {
		if errors.Is(err, kegtron.ErrNotKegtron) {
			return nil
		}
		return err
	}
	if m.deviceID != "" && !strings.EqualFold(device.ID, m.deviceID) {
		return nil
	}

	if ev := m.Publish(device); ev.Type != keg.EventNone {
		m.logger.Infof("detected event: %s", ev)
	}

	return nil
}

// Run broadcasts all simulated kegs periodically until the context is cancelled
// or the monitor is closed
func (m *Mock) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Broadcast()

		select {
		case <-ctx.Done():
			return
		case <-m.doneChan:
			return
		case <-ticker.C:
		}
	}
}

// Close terminates the simulation
func (m *Mock) Close() error {
	m.closeOnce.Do(func() {
		close(m.doneChan)
		m.SetStatus(keg.StateStopped, nil)
	})

	return nil
}

////////////////////////////////////////////////////////////////////////////////

func (m *Mock) update(key string, fn func(r *keg.Reading)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.kegs[strings.ToUpper(key)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKeg, key)
	}
	fn(&k.reading)

	return nil
}
