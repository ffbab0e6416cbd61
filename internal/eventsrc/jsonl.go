package eventsrc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// maxLineBytes bounds a single JSON Lines record.
const maxLineBytes = 1 << 20

// jsonRecord accepts both the ecommerce export keys and the Event field names.
type jsonRecord struct {
	EventTime   string    `json:"event_time"`
	Timestamp   string    `json:"timestamp"`
	EventType   string    `json:"event_type"`
	Stage       string    `json:"stage"`
	UserID      flexField `json:"user_id"`
	UserSession string    `json:"user_session"`
	SessionID   string    `json:"session_id"`
	Channel     string    `json:"channel"`
	IsBot       flexField `json:"is_bot"`
	Price       flexField `json:"price"`
	Value       flexField `json:"value"`
	ProductID   flexField `json:"product_id"`
}

// flexField holds a scalar that may be encoded as a JSON string, number or bool.
type flexField string

func (f *flexField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexField(s)
		return nil
	}
	*f = flexField(b)
	return nil
}

func (r jsonRecord) event() schema.Event {
	stage := stageOf(firstNonEmpty(r.EventType, r.Stage))
	ts, _ := contract.ParseTimestamp(firstNonEmpty(r.EventTime, r.Timestamp))
	return schema.Event{
		UserID:    strings.TrimSpace(string(r.UserID)),
		SessionID: strings.TrimSpace(firstNonEmpty(r.UserSession, r.SessionID)),
		Timestamp: ts,
		Channel:   strings.TrimSpace(r.Channel),
		Stage:     stage,
		IsBot:     parseBool(string(r.IsBot)),
		Value:     priceOf(stage, firstNonEmpty(string(r.Price), string(r.Value))),
		ProductID: strings.TrimSpace(string(r.ProductID)),
	}
}

// decodeJSONL reads one JSON object per line. Blank lines are skipped; a line that
// is not valid JSON keeps its slot as an empty event so ingestion can reject it.
func decodeJSONL(ctx context.Context, r io.Reader) ([]schema.Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var events []schema.Event
	for line := 0; sc.Scan(); line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec jsonRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			events = append(events, schema.Event{})
			continue
		}
		events = append(events, rec.event())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrSourceUnavailable, err)
	}
	return events, nil
}

// EncodeJSONL writes one Event object per line.
func EncodeJSONL(w io.Writer, events []schema.Event) error {
	enc := json.NewEncoder(w)
	for i, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
