// Package eventsrc loads raw interaction events from CSV, JSON Lines and Parquet files.
//
// Loaders are tolerant at the field level: a value that cannot be decoded is left
// zero (or NaN for prices) so that ingestion decides whether the record is dropped
// or aborts the run. Structural problems such as a missing required column are
// reported as *schema.DataIntegrityError.
package eventsrc

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// Column names of the ecommerce event export.
const (
	colEventTime   = "event_time"
	colEventType   = "event_type"
	colProductID   = "product_id"
	colPrice       = "price"
	colUserID      = "user_id"
	colUserSession = "user_session"
	colChannel     = "channel"
	colIsBot       = "is_bot"
)

// requiredColumns must be present in every CSV header.
var requiredColumns = []string{colEventTime, colEventType, colUserID, colUserSession}

// ctxCheckEvery is how many records are decoded between cancellation checks.
const ctxCheckEvery = 4096

type decodeFunc func(ctx context.Context, r io.Reader) ([]schema.Event, error)

// FileSource reads events from a single file on disk.
type FileSource struct {
	path   string
	format schema.InputFormat
}

var _ contract.EventSource = &FileSource{} // Compile-time check

// New returns a source for path. An auto format is resolved from the file extension.
func New(path string, format schema.InputFormat) (*FileSource, error) {
	if format == "" || format == schema.AutoFormat {
		format = contract.DetectFormat(path)
	}
	if !schema.ValidInputFormats[format] {
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
	if format == schema.ParquetFormat && isGzip(path) {
		return nil, fmt.Errorf("gzip-compressed parquet is not supported: %s", path)
	}
	return &FileSource{path: path, format: format}, nil
}

// Name implements contract.EventSource.
func (s *FileSource) Name() string {
	return fmt.Sprintf("%s:%s", s.format, s.path)
}

// Format returns the resolved input format.
func (s *FileSource) Format() schema.InputFormat {
	return s.format
}

// Fingerprint implements contract.EventSource. It hashes the file contents so that
// renames and touches keep the cache warm while edits invalidate it.
func (s *FileSource) Fingerprint(ctx context.Context) (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", schema.ErrSourceUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	_, _ = io.WriteString(h, string(s.format))
	if _, err := io.Copy(h, &ctxReader{ctx: ctx, r: f}); err != nil {
		return "", fmt.Errorf("hash %s: %w", s.path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Load implements contract.EventSource.
func (s *FileSource) Load(ctx context.Context) ([]schema.Event, error) {
	if s.format == schema.ParquetFormat {
		return loadParquet(ctx, s.path)
	}

	var decode decodeFunc
	switch s.format {
	case schema.CSVFormat:
		decode = decodeCSV
	case schema.JSONLFormat:
		decode = decodeJSONL
	default:
		return nil, fmt.Errorf("unsupported input format %q", s.format)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrSourceUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if isGzip(s.path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrSourceUnavailable, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return decode(ctx, r)
}

// Static is an in-memory source, used by tests and by callers that already hold events.
type Static struct {
	Label  string
	Events []schema.Event
}

var _ contract.EventSource = Static{} // Compile-time check

// Name implements contract.EventSource.
func (s Static) Name() string { return s.Label }

// Fingerprint implements contract.EventSource. Static sources are never cached.
func (s Static) Fingerprint(context.Context) (string, error) { return "", nil }

// Load implements contract.EventSource.
func (s Static) Load(ctx context.Context) ([]schema.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]schema.Event, len(s.Events))
	copy(out, s.Events)
	return out, nil
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// stageOf normalizes an event_type into a stage. Unknown types pass through so that
// ingestion can ignore or reject them.
func stageOf(eventType string) schema.Stage {
	return schema.Stage(strings.ToLower(strings.TrimSpace(eventType)))
}

// priceOf returns the purchase value of an event. Only purchases carry value; an
// unparseable purchase price becomes NaN and is rejected during ingestion.
func priceOf(stage schema.Stage, raw string) float64 {
	if stage != schema.PurchaseStage {
		return 0
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseBool treats anything that is not a recognizable true value as false.
func parseBool(raw string) bool {
	b, _ := contract.ParseBoolString(strings.TrimSpace(raw))
	return b
}

// ctxReader aborts long reads when the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
