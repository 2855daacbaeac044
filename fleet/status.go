package fleet

import "strings"

// StatusClass groups the free-text statuses found in trip and daily logs.
type StatusClass int

const (
	StatusOther StatusClass = iota
	StatusOn
	StatusOff
)

func (c StatusClass) String() string {
	switch c {
	case StatusOn:
		return "on"
	case StatusOff:
		return "off"
	default:
		return "other"
	}
}

// onStatuses are the spellings data entry uses for an operating trip.
var onStatuses = map[string]bool{
	"on":     true,
	"onl":    true,
	"online": true,
}

// ClassifyStatus trims and case-folds s before classifying it.
func ClassifyStatus(s string) StatusClass {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "off":
		return StatusOff
	case onStatuses[v]:
		return StatusOn
	default:
		return StatusOther
	}
}

// IsOff reports whether s is exactly OFF after trimming and case-folding.
func IsOff(s string) bool { return ClassifyStatus(s) == StatusOff }

// IsRouteLogOn reports whether a daily route log entry marks the route as
// operating. Only ON and ONLINE count here; the abbreviated trip spelling
// "Onl" is not used in daily logs.
func IsRouteLogOn(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "on" || v == "online"
}
