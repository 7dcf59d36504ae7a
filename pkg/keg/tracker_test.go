package keg

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func device(id string, port uint8, r Reading) Device {
	r.PortIndex = port
	return Device{
		ID:       id,
		Name:     "Kegtron " + id,
		LastSeen: time.Date(2024, 5, 17, 18, 30, 0, 0, time.UTC),
		Reading:  r,
	}
}

func TestTrackerObserve(t *testing.T) {
	tracker := NewTracker(NewClassifier())

	ev := tracker.Observe(device("f1edc6", 0, reading(19550, 5000)))
	assert.Equal(t, EventNone, ev.Type)
	assert.Equal(t, "F1EDC6/0", ev.DeviceKey)

	_, ok := tracker.SinceTap("F1EDC6/0")
	assert.True(t, ok)
	_, ok = tracker.SinceLastPour("F1EDC6/0")
	assert.False(t, ok)

	ev = tracker.Observe(device("F1EDC6", 0, reading(19550, 5100)))
	assert.Equal(t, EventPour, ev.Type)
	assert.Equal(t, 100, ev.AmountML)
	assert.EqualValues(t, 5000, ev.Previous.VolumeDispensedML)
	assert.Equal(t, time.Date(2024, 5, 17, 18, 30, 0, 0, time.UTC), ev.TimeStamp)
	assert.Equal(t, 1, tracker.Pours("F1EDC6/0"))

	_, ok = tracker.SinceLastPour("f1edc6/0")
	assert.True(t, ok)

	// Jitter does not move the baseline, the pour is measured from the last one
	ev = tracker.Observe(device("F1EDC6", 0, reading(19550, 5110)))
	assert.Equal(t, EventNone, ev.Type)
	d, ok := tracker.Device("F1EDC6/0")
	require.True(t, ok)
	assert.EqualValues(t, 5110, d.Reading.VolumeDispensedML)

	ev = tracker.Observe(device("F1EDC6", 0, reading(19550, 5150)))
	assert.Equal(t, EventPour, ev.Type)
	assert.Equal(t, 50, ev.AmountML)
	assert.EqualValues(t, 5100, ev.Previous.VolumeDispensedML)
	assert.Equal(t, 2, tracker.Pours("F1EDC6/0"))

	ev = tracker.Observe(device("F1EDC6", 0, reading(18927, 0)))
	assert.Equal(t, EventNewKeg, ev.Type)
	assert.Zero(t, tracker.Pours("F1EDC6/0"))
	_, ok = tracker.SinceLastPour("F1EDC6/0")
	assert.False(t, ok)

	d, ok = tracker.Device("f1edc6/0")
	require.True(t, ok)
	assert.Equal(t, "F1EDC6", d.ID)
	assert.EqualValues(t, 18927, d.Reading.VolumeStartML)
}

func TestTrackerBaseline(t *testing.T) {
	type step struct {
		start, dispensed uint16
		expected         EventType
		amountML         int
	}

	for name, steps := range map[string][]step{
		"slow pour": {
			{19550, 5000, EventNone, 0},
			{19550, 5020, EventNone, 0},
			{19550, 5040, EventPour, 40},
			{19550, 5060, EventNone, 0},
			{19550, 5080, EventPour, 40},
		},
		"jitter adding up": {
			{19550, 5000, EventNone, 0},
			{19550, 5010, EventNone, 0},
			{19550, 5020, EventNone, 0},
			{19550, 5030, EventPour, 30},
		},
		"downward glitch": {
			{19550, 5000, EventNone, 0},
			{19550, 4990, EventNone, 0},
			{19550, 5000, EventNone, 0},
			{19550, 5030, EventPour, 30},
		},
		"step after new keg": {
			{19550, 5000, EventNone, 0},
			{18927, 0, EventNewKeg, 0},
			{18927, 20, EventNone, 0},
			{18927, 40, EventPour, 40},
		},
	} {
		t.Run(name, func(t *testing.T) {
			tracker := NewTracker(NewClassifier())
			for i, s := range steps {
				ev := tracker.Observe(device("F1EDC6", 0, reading(s.start, s.dispensed)))
				require.Equal(t, s.expected, ev.Type, "step %d", i)
				assert.Equal(t, s.amountML, ev.AmountML, "step %d", i)

				// The registry always holds the latest reading
				d, ok := tracker.Device("F1EDC6/0")
				require.True(t, ok)
				assert.Equal(t, s.dispensed, d.Reading.VolumeDispensedML)
			}
		})
	}

	// 200 ml poured in 20 ml steps are fully accounted for
	tracker := NewTracker(NewClassifier())
	total := 0
	for dispensed := uint16(5000); dispensed <= 5200; dispensed += 20 {
		total += tracker.Observe(device("F1EDC6", 0, reading(19550, dispensed))).AmountML
	}
	assert.Equal(t, 200, total)
}

func TestTrackerMissingTimeStamp(t *testing.T) {
	tracker := NewTracker(NewClassifier())

	before := time.Now()
	ev := tracker.Observe(Device{ID: "ABC123", Reading: reading(19550, 0)})
	assert.False(t, ev.TimeStamp.Before(before))
}

func TestTrackerUnknownDevice(t *testing.T) {
	tracker := NewTracker(NewClassifier())

	_, ok := tracker.Device("F1EDC6/0")
	assert.False(t, ok)
	assert.Zero(t, tracker.Pours("F1EDC6/0"))
	_, ok = tracker.SinceTap("F1EDC6/0")
	assert.False(t, ok)
	_, ok = tracker.SinceLastPour("F1EDC6/0")
	assert.False(t, ok)
	assert.Empty(t, tracker.Devices())
	assert.Empty(t, tracker.DevicesByID("F1EDC6"))
	assert.Empty(t, tracker.KnownDevices())
}

func TestTrackerPortsAreIndependent(t *testing.T) {
	tracker := NewTracker(NewClassifier())

	tracker.Observe(device("F1EDC6", 0, reading(19550, 5000)))
	tracker.Observe(device("F1EDC6", 1, reading(18927, 100)))
	tracker.Observe(device("ABC123", 0, reading(5000, 0)))

	// Interleaved readings of the other port are not compared against each other
	assert.Equal(t, EventNone, tracker.Observe(device("F1EDC6", 0, reading(19550, 5000))).Type)
	assert.Equal(t, EventNone, tracker.Observe(device("F1EDC6", 1, reading(18927, 100))).Type)
	assert.Equal(t, EventPour, tracker.Observe(device("F1EDC6", 1, reading(18927, 500))).Type)
	assert.Zero(t, tracker.Pours("F1EDC6/0"))
	assert.Equal(t, 1, tracker.Pours("F1EDC6/1"))

	assert.Equal(t, []string{"ABC123/0", "F1EDC6/0", "F1EDC6/1"}, tracker.KnownDevices())

	devices := tracker.Devices()
	require.Len(t, devices, 3)
	for i, key := range []string{"ABC123/0", "F1EDC6/0", "F1EDC6/1"} {
		assert.Equal(t, key, devices[i].Key())
	}

	ports := tracker.DevicesByID("f1edc6")
	require.Len(t, ports, 2)
	assert.EqualValues(t, 0, ports[0].Reading.PortIndex)
	assert.EqualValues(t, 1, ports[1].Reading.PortIndex)
}

func TestTrackerForget(t *testing.T) {
	tracker := NewTracker(NewClassifier())

	tracker.Observe(device("F1EDC6", 0, reading(19550, 5000)))
	tracker.Forget("f1edc6/0")

	_, ok := tracker.Device("F1EDC6/0")
	assert.False(t, ok)

	// A new baseline is established, no event is emitted
	assert.Equal(t, EventNone, tracker.Observe(device("F1EDC6", 0, reading(19550, 6000))).Type)
	assert.Equal(t, EventPour, tracker.Observe(device("F1EDC6", 0, reading(19550, 6100))).Type)
}

func TestTrackerForgetWhileObserving(t *testing.T) {
	tracker := NewTracker(NewClassifier())
	tracker.Observe(device("F1EDC6", 0, reading(19550, 5000)))

	// Hold the entry so the next observation has to wait for it
	stale := tracker.entry("F1EDC6/0")
	stale.Lock()

	observed := make(chan Event)
	go func() {
		observed <- tracker.Observe(device("F1EDC6", 0, reading(19550, 6000)))
	}()

	tracker.Forget("F1EDC6/0")
	stale.Unlock()

	// The observation lands in a fresh entry and establishes a new baseline
	select {
	case ev := <-observed:
		assert.Equal(t, EventNone, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for observation")
	}

	d, ok := tracker.Device("F1EDC6/0")
	require.True(t, ok)
	assert.EqualValues(t, 6000, d.Reading.VolumeDispensedML)
	assert.NotSame(t, stale, tracker.entry("F1EDC6/0"))
	assert.EqualValues(t, 5000, stale.device.Reading.VolumeDispensedML)
}

func TestTrackerSinceTap(t *testing.T) {
	tracker := NewTracker(NewClassifier())

	tracker.Observe(device("F1EDC6", 0, reading(19550, 5000)))
	time.Sleep(20 * time.Millisecond)

	sinceFirst, ok := tracker.SinceTap("F1EDC6/0")
	require.True(t, ok)
	assert.GreaterOrEqual(t, sinceFirst, 20*time.Millisecond)

	tracker.Observe(device("F1EDC6", 0, reading(18927, 0)))
	sinceTap, ok := tracker.SinceTap("F1EDC6/0")
	require.True(t, ok)
	assert.Less(t, sinceTap, sinceFirst)
}

func TestTrackerConcurrentObservations(t *testing.T) {
	const (
		nDevices      = 16
		nObservations = 100
	)

	tracker := NewTracker(NewClassifier(WithMinPour(1)))

	var wg sync.WaitGroup
	for i := 0; i < nDevices; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < nObservations; j++ {
				tracker.Observe(device(id, 0, reading(KegSizeHalfBarrel, uint16(j*10))))
			}
		}(fmt.Sprintf("%06X", i))
	}

	// Concurrent readers
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < nObservations; j++ {
			for _, d := range tracker.Devices() {
				_, _ = tracker.SinceLastPour(d.Key())
			}
		}
	}()
	wg.Wait()

	require.Len(t, tracker.Devices(), nDevices)
	for _, key := range tracker.KnownDevices() {
		assert.Equal(t, nObservations-1, tracker.Pours(key), key)
	}
}

func TestTrackerConcurrentObservationsSameDevice(t *testing.T) {
	tracker := NewTracker(NewClassifier(WithMinPour(1)))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r := reading(KegSizeHalfBarrel, 0)
				ev := tracker.Observe(device("F1EDC6", 0, r))
				mu.Lock()
				if ev.Type != EventNone {
					total++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Identical readings never yield a transition, regardless of interleaving
	assert.Zero(t, total)
	assert.Len(t, tracker.Devices(), 1)
}
