// Package routing scores incoming requests into generation-effort tiers
// and maps each tier to a generation strategy.
package routing

import "unicode/utf8"

// Complexity is the generation-effort tier of a request.
type Complexity int

// Tiers in increasing effort order.
const (
	Low Complexity = iota
	Medium
	High
)

// Classification thresholds, in characters of the message.
const (
	mediumThreshold = 200
	highThreshold   = 800
)

func (c Complexity) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Classify scores a message by its length in characters. Boundaries are
// inclusive as stated: 199 is Low, 200 is Medium, 799 is Medium, 800 is High.
func Classify(message string) Complexity {
	length := utf8.RuneCountInString(message)
	switch {
	case length < mediumThreshold:
		return Low
	case length < highThreshold:
		return Medium
	default:
		return High
	}
}
