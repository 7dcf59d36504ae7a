package keg

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/stopwatch"
)

// Tracker holds the most recent reading per device / port and classifies each new
// observation against the reading of the last transition (or of first sight).
// Observations for the same key are serialized, different keys are processed
// independently
type Tracker struct {
	classifier Classifier

	mu      sync.RWMutex
	entries map[string]*trackerEntry
}

type trackerEntry struct {
	sync.Mutex

	device   Device
	baseline Reading
	seen     bool
	pours    int

	sinceTap  *stopwatch.Stopwatch
	sincePour *stopwatch.Stopwatch
}

// NewTracker instantiates a new Tracker using the provided classifier
func NewTracker(classifier Classifier) *Tracker {
	return &Tracker{
		classifier: classifier,
		entries:    make(map[string]*trackerEntry),
	}
}

// Classifier returns the classifier used by the tracker
func (t *Tracker) Classifier() Classifier {
	return t.classifier
}

// Observe records a device observation and returns the transition relative to the
// baseline of the same device / port (EventNone on first sight). The baseline only
// advances on a pour or a new keg, so consecutive changes below the pour threshold
// add up until they qualify
func (t *Tracker) Observe(d Device) Event {

	d.ID = strings.ToUpper(d.ID)
	key := d.Key()

	entry := t.lockedEntry(key)
	defer entry.Unlock()

	var previous *Reading
	if entry.seen {
		baseline := entry.baseline
		previous = &baseline
	} else {
		entry.seen = true
		entry.baseline = d.Reading
		entry.sinceTap = stopwatch.Start(0)
	}

	ev := t.classifier.Classify(previous, d.Reading)
	ev.DeviceKey = key
	ev.TimeStamp = d.LastSeen
	if ev.TimeStamp.IsZero() {
		ev.TimeStamp = time.Now()
	}

	switch ev.Type {
	case EventPour:
		entry.pours++
		entry.baseline = d.Reading
		entry.sincePour = stopwatch.Start(0)
	case EventNewKeg:
		entry.pours = 0
		entry.baseline = d.Reading
		entry.sincePour = nil
		entry.sinceTap = stopwatch.Start(0)
	}

	// The reading is replaced, never merged
	entry.device = d

	return ev
}

// Device returns the last observed state of a device / port (key as per Device.Key())
func (t *Tracker) Device(key string) (Device, bool) {
	entry, ok := t.lookup(key)
	if !ok {
		return Device{}, false
	}

	entry.Lock()
	defer entry.Unlock()

	return entry.device, entry.seen
}

// DevicesByID returns all ports observed for a device ID, ordered by port index
func (t *Tracker) DevicesByID(id string) Devices {
	var res Devices
	for _, d := range t.Devices() {
		if strings.EqualFold(d.ID, id) {
			res = append(res, d)
		}
	}

	return res
}

// Devices returns the last observed state of all devices, ordered by key
func (t *Tracker) Devices() Devices {
	t.mu.RLock()
	entries := make([]*trackerEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		entries = append(entries, entry)
	}
	t.mu.RUnlock()

	res := make(Devices, 0, len(entries))
	for _, entry := range entries {
		entry.Lock()
		if entry.seen {
			res = append(res, entry.device)
		}
		entry.Unlock()
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Key() < res[j].Key()
	})

	return res
}

// KnownDevices returns the keys of all observed devices, in sorted order
func (t *Tracker) KnownDevices() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	t.mu.RUnlock()
	sort.Strings(keys)

	return keys
}

// Pours returns the number of pours observed since the current keg was tapped
// (or since the device was first observed)
func (t *Tracker) Pours(key string) int {
	entry, ok := t.lookup(key)
	if !ok {
		return 0
	}

	entry.Lock()
	defer entry.Unlock()

	return entry.pours
}

// SinceLastPour returns the time elapsed since the last pour on a device / port
func (t *Tracker) SinceLastPour(key string) (time.Duration, bool) {
	entry, ok := t.lookup(key)
	if !ok {
		return 0, false
	}

	entry.Lock()
	defer entry.Unlock()
	if entry.sincePour == nil {
		return 0, false
	}

	return entry.sincePour.ElapsedTime(), true
}

// SinceTap returns the time elapsed since a new keg was detected on a device / port
// (or since the device was first observed)
func (t *Tracker) SinceTap(key string) (time.Duration, bool) {
	entry, ok := t.lookup(key)
	if !ok {
		return 0, false
	}

	entry.Lock()
	defer entry.Unlock()
	if entry.sinceTap == nil {
		return 0, false
	}

	return entry.sinceTap.ElapsedTime(), true
}

// Forget removes a device / port from the tracker, the next observation will
// establish a new baseline. An observation of the same key running concurrently
// either completes before the removal or is applied to a fresh entry
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	delete(t.entries, strings.ToUpper(key))
	t.mu.Unlock()
}

////////////////////////////////////////////////////////////////////////////////

func (t *Tracker) lookup(key string) (*trackerEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[strings.ToUpper(key)]
	return entry, ok
}

func (t *Tracker) entry(key string) *trackerEntry {
	if entry, ok := t.lookup(key); ok {
		return entry
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check, another writer might have created the entry in the meantime
	if entry, ok := t.entries[key]; ok {
		return entry
	}
	entry := &trackerEntry{}
	t.entries[key] = entry

	return entry
}

// lockedEntry returns the (locked) entry for a key, skipping entries that were
// forgotten while waiting for the lock
func (t *Tracker) lockedEntry(key string) *trackerEntry {
	for {
		entry := t.entry(key)
		entry.Lock()
		if current, ok := t.lookup(key); ok && current == entry {
			return entry
		}
		entry.Unlock()
	}
}
