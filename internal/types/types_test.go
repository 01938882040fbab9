package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *EngineError
		want string
	}{
		{
			name: "without cause",
			err:  NewError(AUTH_FAILED, "authentication rejected"),
			want: "[AUTH_FAILED] authentication rejected",
		},
		{
			name: "with cause",
			err:  WrapError(ENDPOINT_CALL_FAILED, "send failed", fmt.Errorf("connection refused")),
			want: "[ENDPOINT_CALL_FAILED] send failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestEngineError_Is(t *testing.T) {
	err := WrapRetryableError(ENDPOINT_TIMEOUT, "no terminal signal", fmt.Errorf("deadline"))

	assert.True(t, errors.Is(err, NewError(ENDPOINT_TIMEOUT, "")))
	assert.False(t, errors.Is(err, NewError(AUTH_FAILED, "")))
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := WrapError(STORE_QUERY_FAILED, "query failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableError(ENDPOINT_TIMEOUT, "timeout")))
	assert.False(t, IsRetryable(NewError(AUTH_FAILED, "rejected")))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewError(JUDGE_MALFORMED_OUTPUT, "bad json"))

	assert.Equal(t, JUDGE_MALFORMED_OUTPUT, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain")))
}

func TestNewID(t *testing.T) {
	id := NewID()

	require.NoError(t, id.Validate())
	assert.False(t, id.IsZero())
	assert.NotEqual(t, NewID(), id)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"empty", "", true},
		{"not a uuid", "not-a-uuid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestID_JSONRoundTrip(t *testing.T) {
	id := NewID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestID_MarshalJSON_Zero(t *testing.T) {
	var id ID

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestSeverity_Rank(t *testing.T) {
	// Weight ordering must be strict: critical > high > medium > low > info.
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Greater(t, SeverityLow.Rank(), SeverityInfo.Rank())
}

func TestSeverity_AtLeast(t *testing.T) {
	tests := []struct {
		name      string
		severity  Severity
		threshold Severity
		want      bool
	}{
		{"critical at least high", SeverityCritical, SeverityHigh, true},
		{"high at least high", SeverityHigh, SeverityHigh, true},
		{"medium not at least high", SeverityMedium, SeverityHigh, false},
		{"info at least info", SeverityInfo, SeverityInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.severity.AtLeast(tt.threshold))
		})
	}
}

func TestSeverity_UnmarshalJSON_Invalid(t *testing.T) {
	var s Severity
	err := json.Unmarshal([]byte(`"catastrophic"`), &s)
	assert.Error(t, err)
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("informational")
	require.NoError(t, err)
	assert.Equal(t, SeverityInfo, sev)

	sev, err = ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)

	_, err = ParseSeverity("bogus")
	assert.Error(t, err)
}

func TestTestingLevel_Budgets(t *testing.T) {
	tests := []struct {
		name     string
		level    TestingLevel
		turns    int
		duration time.Duration
	}{
		{"unit", LevelUnit, 5, 2 * time.Minute},
		{"system", LevelSystem, 15, 10 * time.Minute},
		{"acceptance", LevelAcceptance, 40, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.turns, tt.level.MaxTurns())
			assert.Equal(t, tt.duration, tt.level.MaxDuration())
		})
	}
}

func TestTestingLevel_IsValid(t *testing.T) {
	assert.True(t, LevelUnit.IsValid())
	assert.True(t, LevelAcceptance.IsValid())
	assert.False(t, TestingLevel("regression").IsValid())
}
