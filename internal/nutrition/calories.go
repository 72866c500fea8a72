// Package nutrition holds the small heuristics the bot applies to free text:
// pulling a calorie total out of a model narrative, pulling a calorie target
// out of user goals, and parsing weigh-ins.
//
// None of this is a real parser. The model answers in loosely formatted
// Russian and the goals are whatever the user typed.
package nutrition

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "450 ккал", "450 кал", "450 калорий"
	caloriePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:к?кал|калори[йя])`)

	// "калории: 2000", "ккал - 1800", "kcal 2100"
	targetKeywordFirst = regexp.MustCompile(`(?i)(?:калори[йяи]?|ккал|kcal|calories)\s*[:=\-–]?\s*(\d+(?:[.,]\d+)?)`)
	// "2000 ккал", "1800 kcal"
	targetNumberFirst = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:к?кал|kcal|калори[йя])`)
)

// ExtractCalories returns the calorie total stated in a model narrative.
//
// The narrative lists per-item values before the total, so the LAST match
// wins. No match (or an unparsable number) yields 0.
func ExtractCalories(narrative string) float64 {
	matches := caloriePattern.FindAllStringSubmatch(narrative, -1)
	if len(matches) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0
	}
	return v
}

// CalorieTarget extracts a daily calorie target from free-text goals.
// It is best effort: ok is false when nothing calorie-like is found.
func CalorieTarget(goals string) (target float64, ok bool) {
	for _, re := range []*regexp.Regexp{targetNumberFirst, targetKeywordFirst} {
		m := re.FindStringSubmatch(goals)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil || v <= 0 {
			continue
		}
		return v, true
	}
	return 0, false
}
