package schema

import "time"

// Event is a single raw interaction from the event log.
type Event struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
	Stage     Stage     `json:"stage"`
	IsBot     bool      `json:"is_bot"`
	Value     float64   `json:"value"`      // purchase price, zero for other stages
	ProductID string    `json:"product_id"` // optional, only used for dedupe
}

// Session is an ordered run of events for one user without a long gap.
type Session struct {
	UserID string
	Events []Event
}

// Start returns the timestamp of the first event.
func (s Session) Start() time.Time {
	if len(s.Events) == 0 {
		return time.Time{}
	}
	return s.Events[0].Timestamp
}

// Touchpoint is the unit credited by attribution models.
type Touchpoint struct {
	Stage     Stage     `json:"stage"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

// Journey is the ordered touchpoint history of one user up to conversion or window expiry.
type Journey struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Touchpoints  []Touchpoint `json:"touchpoints"`
	Converted    bool         `json:"converted"`
	Value        float64      `json:"value"`
	DurationDays float64      `json:"duration_days"`
	Sessions     int          `json:"sessions"`
}

// Credited returns the touchpoints that receive credit. The terminal purchase of a
// converted journey is excluded unless it is the only touchpoint.
func (j Journey) Credited() []Touchpoint {
	n := len(j.Touchpoints)
	if n <= 1 || !j.Converted {
		return j.Touchpoints
	}
	return j.Touchpoints[:n-1]
}

// CreditedStages returns the distinct credited stages in first-seen order.
func (j Journey) CreditedStages() []Stage {
	seen := make(map[Stage]bool)
	var stages []Stage
	for _, tp := range j.Credited() {
		if !seen[tp.Stage] {
			seen[tp.Stage] = true
			stages = append(stages, tp.Stage)
		}
	}
	return stages
}

// HasStage reports whether any touchpoint of the journey is in the given stage.
func (j Journey) HasStage(stage Stage) bool {
	for _, tp := range j.Touchpoints {
		if tp.Stage == stage {
			return true
		}
	}
	return false
}

// Start returns the timestamp of the first touchpoint.
func (j Journey) Start() time.Time {
	if len(j.Touchpoints) == 0 {
		return time.Time{}
	}
	return j.Touchpoints[0].Timestamp
}
