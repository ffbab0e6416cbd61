// Package ingest cleans raw event records before journeys are built.
package ingest

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/step6836/marketing-attribution/internal/logger"
	"github.com/step6836/marketing-attribution/schema"
)

// IgnoredByDefault holds the raw event types dropped without being counted as malformed.
var IgnoredByDefault = []schema.Stage{"remove_from_cart"}

// Options controls how raw events are filtered.
type Options struct {
	Strict       bool                  // malformed records abort instead of being dropped
	IgnoreStages map[schema.Stage]bool // event types skipped before validation
	Detector     BotDetector           // nil means FlagDetector only
}

// Result is the filtered event set plus the counts reported in the artifact meta.
type Result struct {
	Events     []schema.Event
	Total      int
	Users      int
	Sessions   int
	BotEvents  int
	BotUsers   int
	Duplicates int
	Malformed  int
	Ignored    int
}

type dedupeKey struct {
	user, session, channel, product string
	stage                           schema.Stage
	ts                              int64
}

// Filter validates, dedupes and bot-filters events. The relative order of the kept
// events is the input order. An empty result is not an error.
func Filter(ctx context.Context, events []schema.Event, opts Options) (Result, error) {
	res := Result{Total: len(events)}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	detector := opts.Detector
	if detector == nil {
		detector = FlagDetector{}
	}

	valid := make([]int, 0, len(events))
	seen := make(map[dedupeKey]struct{}, len(events))
	for i, e := range events {
		if opts.IgnoreStages[e.Stage] {
			res.Ignored++
			continue
		}
		if err := validate(i, e); err != nil {
			if opts.Strict {
				return res, err
			}
			res.Malformed++
			continue
		}
		key := dedupeKey{
			user:    e.UserID,
			session: e.SessionID,
			channel: e.Channel,
			product: e.ProductID,
			stage:   e.Stage,
			ts:      e.Timestamp.UnixNano(),
		}
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		valid = append(valid, i)
	}

	byUser := make(map[string][]schema.Event)
	for _, i := range valid {
		byUser[events[i].UserID] = append(byUser[events[i].UserID], events[i])
	}
	bots := make(map[string]bool)
	for user, evs := range byUser {
		sort.SliceStable(evs, func(a, b int) bool { return evs[a].Timestamp.Before(evs[b].Timestamp) })
		if detector.IsBot(user, evs) {
			bots[user] = true
		}
	}
	res.BotUsers = len(bots)

	users := make(map[string]struct{})
	sessions := make(map[string]struct{})
	kept := make([]schema.Event, 0, len(valid))
	for _, i := range valid {
		e := events[i]
		if e.IsBot || bots[e.UserID] {
			res.BotEvents++
			continue
		}
		kept = append(kept, e)
		users[e.UserID] = struct{}{}
		sessions[e.UserID+"\x00"+e.SessionID] = struct{}{}
	}
	res.Events = kept
	res.Users = len(users)
	res.Sessions = len(sessions)

	logger.FromContext(ctx).Debug("events filtered",
		zap.Int("total", res.Total),
		zap.Int("kept", len(kept)),
		zap.Int("bot_events", res.BotEvents),
		zap.Int("bot_users", res.BotUsers),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("malformed", res.Malformed),
		zap.Int("ignored", res.Ignored),
		zap.String("detector", detector.Name()))

	return res, nil
}

// ParseIgnoreStages turns a comma-separated list into a lookup set.
func ParseIgnoreStages(list string) map[schema.Stage]bool {
	out := make(map[schema.Stage]bool)
	for s := range strings.SplitSeq(list, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out[schema.Stage(s)] = true
		}
	}
	return out
}

func validate(i int, e schema.Event) error {
	switch {
	case strings.TrimSpace(e.UserID) == "":
		return &schema.DataIntegrityError{Record: i, Field: "user_id", Reason: "missing"}
	case e.Timestamp.IsZero():
		return &schema.DataIntegrityError{Record: i, Field: "timestamp", Reason: "missing"}
	case !schema.ValidStages[e.Stage]:
		return &schema.DataIntegrityError{Record: i, Field: "stage", Reason: "unknown stage " + strconv.Quote(string(e.Stage))}
	case math.IsNaN(e.Value) || math.IsInf(e.Value, 0) || e.Value < 0:
		return &schema.DataIntegrityError{Record: i, Field: "value", Reason: "must be a non-negative number"}
	}
	return nil
}
