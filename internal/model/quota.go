package model

import "time"

// QuotaState is the persisted per-source daily call budget. Day is the
// calendar date (YYYY-MM-DD) in the configured reset zone; a restart mid-day
// picks the counter back up instead of resetting it.
type QuotaState struct {
	Source     SourceKind `json:"source"`
	Day        string     `json:"day"`
	CallsMade  int        `json:"calls_made_today"`
	DailyLimit int        `json:"daily_limit"`
	ResetAt    time.Time  `json:"reset_at"`
}

// Remaining returns how many calls are left in today's budget.
func (q QuotaState) Remaining() int {
	r := q.DailyLimit - q.CallsMade
	if r < 0 {
		return 0
	}
	return r
}
