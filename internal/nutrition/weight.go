package nutrition

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chuikova-e/nutritioner-bot/internal/apperror"
	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

const (
	MinWeight = 30.0
	MaxWeight = 300.0

	// Weight deltas at or below this are treated as "no change".
	minTrendDelta = 0.1
)

// ParseWeight parses a weigh-in typed by the user. Both "72.5" and "72,5"
// are accepted. Values outside [MinWeight, MaxWeight] are rejected.
func ParseWeight(text string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if s == "" {
		return 0, apperror.ValidationFailed("weight", "weight is empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperror.ValidationFailed("weight", fmt.Sprintf("%q is not a number", text))
	}
	if v < MinWeight || v > MaxWeight {
		return 0, apperror.ValidationFailed("weight",
			fmt.Sprintf("weight must be between %.0f and %.0f kg", MinWeight, MaxWeight))
	}
	return v, nil
}

// WeightChange describes the difference between the two most recent
// measurements. history is newest first and includes the current weigh-in.
func WeightChange(history []model.WeightMeasurement) string {
	if len(history) < 2 {
		return "первое измерение"
	}
	diff := history[0].Weight - history[1].Weight
	if math.Abs(diff) < minTrendDelta {
		return "без изменений"
	}
	direction := "снизился"
	if diff > 0 {
		direction = "увеличился"
	}
	return fmt.Sprintf("%s на %.1f кг", direction, math.Abs(diff))
}

// WeeksToTarget extrapolates the latest week-over-week delta linearly.
//
// ok is false when there are fewer than two measurements or the delta is too
// small to divide by. A negative result means the trend points away from
// the target.
func WeeksToTarget(history []model.WeightMeasurement, target float64) (weeks float64, ok bool) {
	if len(history) < 2 {
		return 0, false
	}
	delta := history[0].Weight - history[1].Weight
	if math.Abs(delta) <= minTrendDelta {
		return 0, false
	}
	return (target - history[0].Weight) / delta, true
}
