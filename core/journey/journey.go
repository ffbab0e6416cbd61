// Package journey turns filtered events into ordered touchpoint journeys.
package journey

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/step6836/marketing-attribution/schema"
)

// Default windows.
const (
	DefaultSessionGap       = 30 * time.Minute
	DefaultConversionWindow = 30 * 24 * time.Hour
)

// namespace for deterministic journey ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/step6836/marketing-attribution/journey"))

// Options bounds sessions and journeys.
type Options struct {
	ConversionWindow time.Duration // zero means unbounded
	SessionGap       time.Duration // zero means DefaultSessionGap
}

// Sessionize groups events per user and splits each user's events into sessions
// wherever consecutive events are more than gap apart. Events keep their input
// order on equal timestamps. Sessions are ordered by user id, then start time.
func Sessionize(events []schema.Event, gap time.Duration) []schema.Session {
	if gap <= 0 {
		gap = DefaultSessionGap
	}

	byUser := make(map[string][]schema.Event)
	var users []string
	for _, e := range events {
		if _, ok := byUser[e.UserID]; !ok {
			users = append(users, e.UserID)
		}
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	sort.Strings(users)

	var sessions []schema.Session
	for _, user := range users {
		evs := byUser[user]
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })

		cur := schema.Session{UserID: user}
		for _, e := range evs {
			if n := len(cur.Events); n > 0 && e.Timestamp.Sub(cur.Events[n-1].Timestamp) > gap {
				sessions = append(sessions, cur)
				cur = schema.Session{UserID: user}
			}
			cur.Events = append(cur.Events, e)
		}
		if len(cur.Events) > 0 {
			sessions = append(sessions, cur)
		}
	}
	return sessions
}

// Build assembles journeys from events. Consecutive sessions of a user are joined while
// they stay within the conversion window measured from the journey's first touchpoint.
// A journey ends at its first purchase, which makes it converted with the purchase value,
// or when the next event falls outside the window. Every journey has at least one touchpoint.
func Build(events []schema.Event, opts Options) []schema.Journey {
	sessions := Sessionize(events, opts.SessionGap)

	var journeys []schema.Journey
	var cur *schema.Journey
	var lastSession int

	flush := func() {
		if cur != nil && len(cur.Touchpoints) > 0 {
			finish(cur)
			journeys = append(journeys, *cur)
		}
		cur = nil
	}

	for si, s := range sessions {
		if cur != nil && cur.UserID != s.UserID {
			flush()
		}
		for _, e := range s.Events {
			if cur != nil && opts.ConversionWindow > 0 && e.Timestamp.Sub(cur.Start()) > opts.ConversionWindow {
				flush()
			}
			if cur == nil {
				cur = &schema.Journey{UserID: e.UserID}
				lastSession = -1
			}
			if lastSession != si {
				cur.Sessions++
				lastSession = si
			}
			cur.Touchpoints = append(cur.Touchpoints, schema.Touchpoint{
				Stage:     e.Stage,
				Channel:   e.Channel,
				Timestamp: e.Timestamp,
			})
			if e.Stage == schema.PurchaseStage {
				cur.Converted = true
				cur.Value = e.Value
				flush()
			}
		}
	}
	flush()
	return journeys
}

// ID returns the deterministic id of a journey starting at start for user.
func ID(user string, start time.Time) string {
	return uuid.NewSHA1(namespace, []byte(user+"|"+start.UTC().Format(time.RFC3339Nano))).String()
}

func finish(j *schema.Journey) {
	first := j.Touchpoints[0].Timestamp
	last := j.Touchpoints[len(j.Touchpoints)-1].Timestamp
	j.ID = ID(j.UserID, first)
	j.DurationDays = last.Sub(first).Hours() / 24
}

// Converted returns the converted journeys in their original order.
func Converted(journeys []schema.Journey) []schema.Journey {
	out := make([]schema.Journey, 0, len(journeys))
	for _, j := range journeys {
		if j.Converted {
			out = append(out, j)
		}
	}
	return out
}

// Sample keeps every journey of the first n users with a conversion, in journey order.
// Journeys of users without a conversion are kept as they feed the Markov null state.
// n <= 0 keeps everything.
func Sample(journeys []schema.Journey, n int) []schema.Journey {
	if n <= 0 {
		return journeys
	}
	keep := make(map[string]bool)
	for _, j := range journeys {
		if j.Converted && !keep[j.UserID] && len(keep) < n {
			keep[j.UserID] = true
		}
	}
	converters := make(map[string]bool)
	for _, j := range journeys {
		if j.Converted {
			converters[j.UserID] = true
		}
	}
	out := make([]schema.Journey, 0, len(journeys))
	for _, j := range journeys {
		if keep[j.UserID] || !converters[j.UserID] {
			out = append(out, j)
		}
	}
	return out
}
