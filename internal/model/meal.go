// Package model defines the data structures shared by the ledger, the
// conversation machine and the notifier.
package model

import "time"

// Date and time layouts used by the ledger columns. Dates and times are stored
// as text so SQLite and Postgres order them identically.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// DailyRecord is one confirmed meal analysis.
//
// A user can log several meals per day, so the natural key is
// (date, time, handle). Records are never updated: a correction is a new
// analysis, committed as a new record.
type DailyRecord struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Date        string    `json:"date"` // YYYY-MM-DD, local time zone
	Time        string    `json:"time"` // HH:MM:SS, local time zone
	Narrative   string    `json:"narrative"`
	Calories    float64   `json:"calories"`
	CommitToken string    `json:"-"` // token of the analysis result that produced this row
	CreatedAt   time.Time `json:"createdAt"`
}

// Clock returns the HH:MM part of the record time.
func (r DailyRecord) Clock() string {
	if len(r.Time) >= 5 {
		return r.Time[:5]
	}
	return r.Time
}

// NutritionGoals holds the user's free-text goals. One row per handle.
type NutritionGoals struct {
	Handle    string `json:"handle"`
	Goals     string `json:"goals"`
	UpdatedAt string `json:"updatedAt"` // YYYY-MM-DD
}
