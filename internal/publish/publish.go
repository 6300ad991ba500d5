// Package publish implements the engine's publication gate (spec component
// C6): a discovery-phase schedule that restricts oracle writes to a narrow
// window within a configured set of UTC hours, at most once per hour.
// Grounded on the teacher's internal/markethours package's shape: a pure
// function of wall-clock state plus a small amount of carried-forward
// mutable state (there, the day cursor implicit in NextOpen; here,
// last_publish_hour).
package publish

import "time"

// Gate owns the discovery-phase schedule's mutable cursor.
type Gate struct {
	DiscoveryPhase  bool
	PublishHours    map[int]struct{}
	lastPublishHour int
}

// DefaultPublishHours is the spec's default discovery-phase schedule: UTC
// midnight and noon.
func DefaultPublishHours() map[int]struct{} {
	return map[int]struct{}{0: {}, 12: {}}
}

// NewGate creates a Gate with last_publish_hour initialized to -1, per
// spec.md §4.6.
func NewGate(discoveryPhase bool, publishHours map[int]struct{}) *Gate {
	if publishHours == nil {
		publishHours = DefaultPublishHours()
	}
	return &Gate{
		DiscoveryPhase:  discoveryPhase,
		PublishHours:    publishHours,
		lastPublishHour: -1,
	}
}

// ShouldPublish decides whether now should trigger a publish, per
// spec.md §4.6: outside discovery phase every tick publishes; inside
// discovery phase, publish only in the first 10 minutes of a configured
// hour, and only once per hour. On a publish decision it advances
// last_publish_hour.
func (g *Gate) ShouldPublish(now time.Time) bool {
	if !g.DiscoveryPhase {
		return true
	}
	utc := now.UTC()
	hour := utc.Hour()
	if _, ok := g.PublishHours[hour]; !ok {
		return false
	}
	if utc.Minute() >= 10 {
		return false
	}
	if hour == g.lastPublishHour {
		return false
	}
	g.lastPublishHour = hour
	return true
}

// LastPublishHour returns the most recently recorded publish hour, or -1 if
// none has occurred yet.
func (g *Gate) LastPublishHour() int { return g.lastPublishHour }
