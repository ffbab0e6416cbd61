package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/step6836/marketing-attribution/schema"
)

// Session-count bins used to classify identities.
const (
	DefaultSuspiciousSessions = 27
	DefaultBotSessions        = 62
)

// BotDetector decides whether an identity is automated traffic.
// Implementations must be deterministic and must not depend on event order.
type BotDetector interface {
	Name() string
	IsBot(userID string, events []schema.Event) bool
}

// FlagDetector marks an identity whose every event carries the is_bot flag.
type FlagDetector struct{}

// Name implements BotDetector.
func (FlagDetector) Name() string { return "flag" }

// IsBot implements BotDetector.
func (FlagDetector) IsBot(_ string, events []schema.Event) bool {
	if len(events) == 0 {
		return false
	}
	for _, e := range events {
		if !e.IsBot {
			return false
		}
	}
	return true
}

// SessionCountDetector marks identities with more distinct sessions than Threshold.
type SessionCountDetector struct {
	Threshold int
}

// Name implements BotDetector.
func (d SessionCountDetector) Name() string { return fmt.Sprintf("sessions>%d", d.Threshold) }

// IsBot implements BotDetector.
func (d SessionCountDetector) IsBot(_ string, events []schema.Event) bool {
	if d.Threshold <= 0 {
		return false
	}
	return DistinctSessions(events) > d.Threshold
}

// EventRateDetector marks identities emitting more than MaxPerMinute events in any
// one-minute window.
type EventRateDetector struct {
	MaxPerMinute int
}

// Name implements BotDetector.
func (d EventRateDetector) Name() string { return fmt.Sprintf("rate>%d/min", d.MaxPerMinute) }

// IsBot implements BotDetector. Events are expected in timestamp order.
func (d EventRateDetector) IsBot(_ string, events []schema.Event) bool {
	if d.MaxPerMinute <= 0 {
		return false
	}
	lo := 0
	for hi := range events {
		for events[hi].Timestamp.Sub(events[lo].Timestamp) >= time.Minute {
			lo++
		}
		if hi-lo+1 > d.MaxPerMinute {
			return true
		}
	}
	return false
}

// ChainDetector flags an identity when any of its detectors does.
type ChainDetector []BotDetector

// Name implements BotDetector.
func (c ChainDetector) Name() string {
	names := make([]string, 0, len(c))
	for _, d := range c {
		names = append(names, d.Name())
	}
	return strings.Join(names, "|")
}

// IsBot implements BotDetector.
func (c ChainDetector) IsBot(userID string, events []schema.Event) bool {
	for _, d := range c {
		if d != nil && d.IsBot(userID, events) {
			return true
		}
	}
	return false
}

// DefaultDetector returns the detector chain used when none is configured.
func DefaultDetector(sessionThreshold, ratePerMinute int) BotDetector {
	return ChainDetector{
		FlagDetector{},
		SessionCountDetector{Threshold: sessionThreshold},
		EventRateDetector{MaxPerMinute: ratePerMinute},
	}
}

// SessionBin labels an identity by its distinct session count.
func SessionBin(sessions int) string {
	switch {
	case sessions <= DefaultSuspiciousSessions:
		return "human"
	case sessions <= DefaultBotSessions:
		return "suspicious"
	default:
		return "bot"
	}
}

// DistinctSessions counts distinct non-empty session ids.
func DistinctSessions(events []schema.Event) int {
	seen := make(map[string]struct{})
	for _, e := range events {
		if e.SessionID != "" {
			seen[e.SessionID] = struct{}{}
		}
	}
	return len(seen)
}
