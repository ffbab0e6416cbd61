package eventsrc

import (
	"context"

	"github.com/step6836/marketing-attribution/internal/parquet"
	"github.com/step6836/marketing-attribution/schema"
)

func loadParquet(ctx context.Context, path string) ([]schema.Event, error) {
	rows, err := parquet.ReadEventsParquet(ctx, path)
	if err != nil {
		return nil, err
	}
	return parquet.ConvertEvents(rows), nil
}
