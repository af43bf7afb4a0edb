package domain

import "strings"

var alertLevelPriorities = map[string]int{
	LevelExpired:    4,
	LevelCritical:   3,
	LevelHigh:       2,
	LevelSlowMoving: 2,
	LevelEarly:      1,
}

var alertLevelColors = map[string]string{
	LevelExpired:    "#7f1d1d",
	LevelCritical:   "#dc2626",
	LevelHigh:       "#f97316",
	LevelEarly:      "#eab308",
	LevelSlowMoving: "#9333ea",
}

var sortModes = map[string]string{
	"urgency":   SortByUrgency,
	"days_left": SortByDaysLeft,
	"daysleft":  SortByDaysLeft,
	"expiry":    SortByDaysLeft,
	"quantity":  SortByQuantity,
}

// AlertPriority returns the ordering weight of an alert level.
func AlertPriority(level string) int {
	return alertLevelPriorities[level]
}

// AlertColor returns the display color of an alert level.
func AlertColor(level string) string {
	if color, ok := alertLevelColors[level]; ok {
		return color
	}

	return "#6b7280"
}

// ParseAlertLevel normalizes a level filter (case-insensitive).
func ParseAlertLevel(label string) (string, bool) {
	level := strings.ToLower(strings.TrimSpace(label))
	if level == "slow-moving" || level == "slowmoving" {
		level = LevelSlowMoving
	}
	_, ok := alertLevelPriorities[level]

	return level, ok
}

// ParseSortMode maps a sortBy query value onto a supported mode, defaulting to urgency.
func ParseSortMode(label string) string {
	if mode, ok := sortModes[strings.ToLower(strings.TrimSpace(label))]; ok {
		return mode
	}

	return SortByUrgency
}
