package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// TestingLevel selects the turn and wall-clock budget for a conversation.
// Levels mirror the unit/system/acceptance ladder: deeper levels spend more
// turns and more time per scenario.
type TestingLevel string

const (
	LevelUnit       TestingLevel = "unit"
	LevelSystem     TestingLevel = "system"
	LevelAcceptance TestingLevel = "acceptance"
)

// String returns the string representation of the TestingLevel.
func (l TestingLevel) String() string {
	return string(l)
}

// IsValid checks if the TestingLevel is a known value.
func (l TestingLevel) IsValid() bool {
	switch l {
	case LevelUnit, LevelSystem, LevelAcceptance:
		return true
	default:
		return false
	}
}

// MaxTurns returns the per-conversation turn budget for the level.
func (l TestingLevel) MaxTurns() int {
	switch l {
	case LevelSystem:
		return 15
	case LevelAcceptance:
		return 40
	default:
		return 5
	}
}

// MaxDuration returns the per-conversation deadline for the level.
func (l TestingLevel) MaxDuration() time.Duration {
	switch l {
	case LevelSystem:
		return 10 * time.Minute
	case LevelAcceptance:
		return 30 * time.Minute
	default:
		return 2 * time.Minute
	}
}

// MarshalJSON implements json.Marshaler.
func (l TestingLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(l))
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown values.
func (l *TestingLevel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	level := TestingLevel(str)
	if !level.IsValid() {
		return fmt.Errorf("invalid testing level: %s", str)
	}

	*l = level
	return nil
}
