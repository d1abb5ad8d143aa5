package models

import (
	"fmt"
	"strings"
)

// VoteDirection defines allowed vote directions.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

const (
	TitleMaxLength = 100
	DefaultAuthor  = "anonymous"
)

var voteDeltas = map[VoteDirection]int{
	VoteUp:   1,
	VoteDown: -1,
}

// ParseVoteDirection normalizes and validates a vote direction.
func ParseVoteDirection(raw string) (VoteDirection, error) {
	value := VoteDirection(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("direction is required")
	}
	if _, ok := voteDeltas[value]; !ok {
		return "", fmt.Errorf("invalid direction: %s (expected up or down)", value)
	}
	return value, nil
}

// Delta returns the score increment for a direction, or 0 for unknown values.
func (d VoteDirection) Delta() int {
	return voteDeltas[d]
}

// IsValidScoreDelta reports whether delta is a single vote increment.
func IsValidScoreDelta(delta int) bool {
	return delta == 1 || delta == -1
}
