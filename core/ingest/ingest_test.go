package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/schema"
)

var base = time.Date(2019, 11, 1, 10, 0, 0, 0, time.UTC)

func ev(user, session string, minute int, stage schema.Stage) schema.Event {
	return schema.Event{
		UserID:    user,
		SessionID: session,
		Timestamp: base.Add(time.Duration(minute) * time.Minute),
		Channel:   "web",
		Stage:     stage,
	}
}

func TestFilterRemovesFlaggedEvents(t *testing.T) {
	bot := ev("u1", "s1", 1, schema.CartStage)
	bot.IsBot = true
	events := []schema.Event{
		ev("u1", "s1", 0, schema.ViewStage),
		bot,
		ev("u1", "s1", 2, schema.PurchaseStage),
	}

	res, err := Filter(context.Background(), events, Options{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.BotEvents)
	assert.Equal(t, 0, res.BotUsers)
	require.Len(t, res.Events, 2)
	for _, e := range res.Events {
		assert.False(t, e.IsBot)
	}
}

func TestFilterAllBotUser(t *testing.T) {
	var events []schema.Event
	for i := range 3 {
		e := ev("robot", "s1", i, schema.ViewStage)
		e.IsBot = true
		events = append(events, e)
	}
	events = append(events, ev("human", "s9", 0, schema.ViewStage))

	res, err := Filter(context.Background(), events, Options{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.BotUsers)
	assert.Equal(t, 3, res.BotEvents)
	assert.Equal(t, 1, res.Users)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "human", res.Events[0].UserID)
}

func TestFilterEmptyIsValid(t *testing.T) {
	res, err := Filter(context.Background(), nil, Options{Strict: true})
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Zero(t, res.Total)
}

func TestFilterDuplicates(t *testing.T) {
	e := ev("u1", "s1", 0, schema.ViewStage)
	res, err := Filter(context.Background(), []schema.Event{e, e, e}, Options{Strict: true})
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
	assert.Equal(t, 2, res.Duplicates)
}

func TestFilterMalformed(t *testing.T) {
	tests := []struct {
		name  string
		event schema.Event
		field string
	}{
		{"missing user", ev("", "s1", 0, schema.ViewStage), "user_id"},
		{"missing timestamp", schema.Event{UserID: "u", Stage: schema.ViewStage}, "timestamp"},
		{"unknown stage", ev("u", "s1", 0, "checkout"), "stage"},
		{"negative value", func() schema.Event { e := ev("u", "s1", 0, schema.PurchaseStage); e.Value = -1; return e }(), "value"},
		{"nan value", func() schema.Event { e := ev("u", "s1", 0, schema.PurchaseStage); e.Value = math.NaN(); return e }(), "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []schema.Event{ev("ok", "s1", 0, schema.ViewStage), tt.event}

			_, err := Filter(context.Background(), events, Options{Strict: true})
			require.Error(t, err)
			assert.True(t, errors.Is(err, schema.ErrDataIntegrity))
			var die *schema.DataIntegrityError
			require.ErrorAs(t, err, &die)
			assert.Equal(t, 1, die.Record)
			assert.Equal(t, tt.field, die.Field)

			res, err := Filter(context.Background(), events, Options{Strict: false})
			require.NoError(t, err)
			assert.Equal(t, 1, res.Malformed)
			assert.Len(t, res.Events, 1)
		})
	}
}

func TestFilterIgnoredStages(t *testing.T) {
	events := []schema.Event{
		ev("u1", "s1", 0, schema.ViewStage),
		ev("u1", "s1", 1, "remove_from_cart"),
	}
	res, err := Filter(context.Background(), events, Options{Strict: true, IgnoreStages: ParseIgnoreStages("remove_from_cart, ")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ignored)
	assert.Len(t, res.Events, 1)
}

func TestFilterKeepsInputOrder(t *testing.T) {
	events := []schema.Event{
		ev("b", "s1", 5, schema.ViewStage),
		ev("a", "s2", 1, schema.ViewStage),
		ev("b", "s1", 0, schema.CartStage),
	}
	res, err := Filter(context.Background(), events, Options{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, events, res.Events)
	assert.Equal(t, 2, res.Users)
	assert.Equal(t, 2, res.Sessions)
}

func TestFilterCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Filter(ctx, []schema.Event{ev("u", "s", 0, schema.ViewStage)}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectors(t *testing.T) {
	manySessions := func(n int) []schema.Event {
		out := make([]schema.Event, 0, n)
		for i := range n {
			out = append(out, ev("u", fmt.Sprintf("s%d", i), i*60, schema.ViewStage))
		}
		return out
	}
	burst := make([]schema.Event, 0, 10)
	for range 10 {
		burst = append(burst, ev("u", "s1", 0, schema.ViewStage))
	}

	tests := []struct {
		name     string
		detector BotDetector
		events   []schema.Event
		expected bool
	}{
		{"flag needs every event", FlagDetector{}, []schema.Event{{IsBot: true}, {IsBot: false}}, false},
		{"flag all events", FlagDetector{}, []schema.Event{{IsBot: true}, {IsBot: true}}, true},
		{"flag empty", FlagDetector{}, nil, false},
		{"suspicious sessions kept", SessionCountDetector{Threshold: DefaultBotSessions}, manySessions(40), false},
		{"bot sessions", SessionCountDetector{Threshold: DefaultBotSessions}, manySessions(63), true},
		{"disabled session threshold", SessionCountDetector{}, manySessions(100), false},
		{"burst over rate", EventRateDetector{MaxPerMinute: 5}, burst, true},
		{"spread under rate", EventRateDetector{MaxPerMinute: 5}, manySessions(20), false},
		{"chain any", ChainDetector{FlagDetector{}, EventRateDetector{MaxPerMinute: 5}}, burst, true},
		{"chain none", ChainDetector{FlagDetector{}, nil}, manySessions(3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.detector.IsBot("u", tt.events))
			// deterministic
			assert.Equal(t, tt.expected, tt.detector.IsBot("u", tt.events))
		})
	}
}

func TestSessionBin(t *testing.T) {
	assert.Equal(t, "human", SessionBin(1))
	assert.Equal(t, "human", SessionBin(27))
	assert.Equal(t, "suspicious", SessionBin(28))
	assert.Equal(t, "suspicious", SessionBin(62))
	assert.Equal(t, "bot", SessionBin(63))
}

func TestDefaultDetectorName(t *testing.T) {
	assert.Equal(t, "flag|sessions>62|rate>30/min", DefaultDetector(62, 30).Name())
}
