package eventsrc

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// decodeCSV reads a header row followed by one event per row. Column order is free;
// unknown columns such as category_code or brand are ignored.
func decodeCSV(ctx context.Context, r io.Reader) ([]schema.Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &schema.DataIntegrityError{Record: -1, Field: "header", Reason: err.Error()}
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, &schema.DataIntegrityError{Record: -1, Field: "header", Reason: "missing " + name + " column"}
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var events []schema.Event
	for rec := 0; ; rec++ {
		if rec%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			// Keep the slot so record indexes stay aligned; ingestion rejects it.
			events = append(events, schema.Event{})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrSourceUnavailable, err)
		}

		stage := stageOf(field(row, colEventType))
		ts, _ := contract.ParseTimestamp(field(row, colEventTime))
		events = append(events, schema.Event{
			UserID:    strings.TrimSpace(field(row, colUserID)),
			SessionID: strings.TrimSpace(field(row, colUserSession)),
			Timestamp: ts,
			Channel:   strings.TrimSpace(field(row, colChannel)),
			Stage:     stage,
			IsBot:     parseBool(field(row, colIsBot)),
			Value:     priceOf(stage, field(row, colPrice)),
			ProductID: strings.TrimSpace(field(row, colProductID)),
		})
	}
	return events, nil
}

// EncodeCSV writes events in the column layout decodeCSV reads.
func EncodeCSV(w io.Writer, events []schema.Event) error {
	cw := csv.NewWriter(w)
	header := []string{colEventTime, colEventType, colProductID, colPrice, colUserID, colUserSession, colChannel, colIsBot}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range events {
		price := ""
		if e.Value != 0 {
			price = strconv.FormatFloat(e.Value, 'f', -1, 64)
		}
		row := []string{
			e.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
			string(e.Stage),
			e.ProductID,
			price,
			e.UserID,
			e.SessionID,
			e.Channel,
			strconv.FormatBool(e.IsBot),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
