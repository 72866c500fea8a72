package model

// WeightGoal is the user's target weight in kilograms. One row per handle.
type WeightGoal struct {
	Handle       string  `json:"handle"`
	TargetWeight float64 `json:"targetWeight"`
	UpdatedAt    string  `json:"updatedAt"`
}

// WeightMeasurement is an append-only weigh-in.
type WeightMeasurement struct {
	ID         string  `json:"id"`
	Handle     string  `json:"handle"`
	Weight     float64 `json:"weight"`
	MeasuredAt string  `json:"measuredAt"` // YYYY-MM-DD
}
