package journey

import "github.com/step6836/marketing-attribution/schema"

// Stats computes descriptive statistics. Averages are taken over converted journeys:
// touchpoints before the purchase and days from first touch to purchase.
func Stats(journeys []schema.Journey) schema.JourneyStats {
	var (
		converted, carts, abandoned int
		touchpoints, days           float64
	)
	for _, j := range journeys {
		if j.HasStage(schema.CartStage) {
			carts++
			if !j.Converted {
				abandoned++
			}
		}
		if !j.Converted {
			continue
		}
		converted++
		touchpoints += float64(max(len(j.Touchpoints)-1, 0))
		days += j.DurationDays
	}

	return schema.JourneyStats{
		AvgTouchpoints:        schema.SafeDiv(touchpoints, float64(converted)),
		AvgDays:               schema.SafeDiv(days, float64(converted)),
		TotalJourneysAnalyzed: converted,
		TotalJourneys:         len(journeys),
		ConversionRate:        schema.SafeDiv(float64(converted), float64(len(journeys))),
		CartAbandonmentRate:   schema.SafeDiv(float64(abandoned), float64(carts)),
	}
}
