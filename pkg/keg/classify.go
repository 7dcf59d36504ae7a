package keg

import (
	"fmt"
	"time"
)

const (

	// DefaultMinPourML denotes the minimum increase of the dispensed volume to be
	// considered a pour (smaller increments are treated as sensor jitter)
	DefaultMinPourML = 30

	// DefaultStartToleranceML denotes the change of the start volume that is tolerated
	// without considering a keg to have been replaced (zero: any change counts)
	DefaultStartToleranceML = 0

	// DefaultResetThresholdML denotes the decrease of the dispensed volume beyond which a
	// keg is considered replaced even if the start volume did not change
	DefaultResetThresholdML = 1000
)

// EventType denotes the type of transition between two readings
type EventType int

const (

	// EventNone denotes no (or an ambiguous) transition
	EventNone EventType = iota

	// EventPour denotes a pour
	EventPour

	// EventNewKeg denotes that a new keg has been tapped
	EventNewKeg
)

// String returns a string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventPour:
		return "pour"
	case EventNewKeg:
		return "new_keg"
	default:
		return "unknown"
	}
}

// Event denotes a transition of a device / port from a reference reading (the one of the
// last transition or of first sight) to the current one
type Event struct {
	Type     EventType
	AmountML int

	// Populated by the Tracker
	DeviceKey string
	TimeStamp time.Time
	Previous  Reading
	Current   Reading
}

// String fulfils the Stringer interface
func (e Event) String() string {
	switch e.Type {
	case EventPour:
		return fmt.Sprintf("%s: pour of %d ml (%q)", e.DeviceKey, e.AmountML, e.Current.BeerName)
	case EventNewKeg:
		return fmt.Sprintf("%s: new keg tapped (%q, %d ml)", e.DeviceKey, e.Current.BeerName, e.Current.VolumeStartML)
	default:
		return fmt.Sprintf("%s: no event", e.DeviceKey)
	}
}

// Classifier reconstructs discrete events from successive cumulative readings
type Classifier struct {
	MinPourML        int
	StartToleranceML int
	ResetThresholdML int
}

// NewClassifier instantiates a new Classifier, executing functional options, if any
func NewClassifier(options ...func(*Classifier)) Classifier {
	c := Classifier{
		MinPourML:        DefaultMinPourML,
		StartToleranceML: DefaultStartToleranceML,
		ResetThresholdML: DefaultResetThresholdML,
	}
	for _, option := range options {
		option(&c)
	}

	return c
}

// WithMinPour sets the minimum pour volume
func WithMinPour(ml int) func(*Classifier) {
	return func(c *Classifier) {
		c.MinPourML = ml
	}
}

// WithStartTolerance sets the tolerated start volume change
func WithStartTolerance(ml int) func(*Classifier) {
	return func(c *Classifier) {
		c.StartToleranceML = ml
	}
}

// WithResetThreshold sets the dispensed volume decrease that signals a keg replacement
// (zero disables detection of replacements without start volume change)
func WithResetThreshold(ml int) func(*Classifier) {
	return func(c *Classifier) {
		c.ResetThresholdML = ml
	}
}

// Classify compares a current reading to the previous one of the same device / port.
// A nil previous reading (first observation) never yields an event
func (c Classifier) Classify(previous *Reading, current Reading) Event {
	ev := Event{
		Type:    EventNone,
		Current: current,
	}
	if previous == nil {
		return ev
	}
	ev.Previous = *previous

	// A keg swap must never be reported as a (negative) pour, hence it is checked first
	if DetectNewKeg(
		int(current.VolumeStartML), int(previous.VolumeStartML),
		int(current.VolumeDispensedML), int(previous.VolumeDispensedML),
		c.StartToleranceML, c.ResetThresholdML,
	) {
		ev.Type = EventNewKeg
		return ev
	}

	if amount, ok := DetectPour(int(current.VolumeDispensedML), int(previous.VolumeDispensedML), c.MinPourML); ok {
		ev.Type = EventPour
		ev.AmountML = amount
	}

	return ev
}

// DetectPour returns the poured amount if the dispensed volume increased by at least minPourML
func DetectPour(currentDispensedML, previousDispensedML, minPourML int) (int, bool) {
	diff := currentDispensedML - previousDispensedML
	if diff <= 0 || diff < minPourML {
		return 0, false
	}

	return diff, true
}

// DetectNewKeg returns if the transition between two readings signals a new keg: the dispensed
// volume must have decreased and either the start volume changed by more than startToleranceML
// or the dispensed volume dropped by more than resetThresholdML
func DetectNewKeg(currentStartML, previousStartML, currentDispensedML, previousDispensedML, startToleranceML, resetThresholdML int) bool {
	drop := previousDispensedML - currentDispensedML
	if drop <= 0 {
		return false
	}

	if abs(currentStartML-previousStartML) > startToleranceML {
		return true
	}

	return resetThresholdML > 0 && drop > resetThresholdML
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
