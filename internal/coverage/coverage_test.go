package coverage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		expected  int
		retrieved int
		decision  Decision
	}{
		{"full coverage", 1000, 1000, Accept},
		{"exactly at accept threshold", 1000, 950, Accept},
		{"just below accept threshold", 1000, 949, AcceptWithWarning},
		{"within warning band", 1000, 920, AcceptWithWarning},
		{"exactly at warning threshold", 1000, 900, AcceptWithWarning},
		{"just below warning threshold", 1000, 899, RequiresRetry},
		{"severe shortfall", 1000, 400, RequiresRetry},
		{"nothing retrieved", 500, 0, RequiresRetry},
		{"over-delivery", 100, 120, Accept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, tt.retrieved)
			for i := range ids {
				ids[i] = fmt.Sprintf("account-%d", i)
			}

			report := Verify(tt.expected, ids)
			assert.Equal(t, tt.decision, report.Decision)
			assert.Equal(t, tt.expected, report.Expected)
			assert.Equal(t, tt.retrieved, report.Retrieved)
		})
	}
}

func TestVerify_ZeroExpected(t *testing.T) {
	report := Verify(0, nil)
	assert.Equal(t, Accept, report.Decision)
	assert.Equal(t, 1.0, report.Ratio)
	assert.Zero(t, report.Shortfall)

	// Retrieved accounts with no expectation are still accepted.
	report = Verify(0, []string{"a", "b"})
	assert.Equal(t, Accept, report.Decision)
}

func TestVerify_DuplicatesCountOnce(t *testing.T) {
	report := Verify(3, []string{"a", "b", "b", "a", "a"})
	assert.Equal(t, 2, report.Retrieved)
	assert.Equal(t, 1, report.Shortfall)
	assert.Equal(t, RequiresRetry, report.Decision)
}

func TestVerify_Shortfall(t *testing.T) {
	ids := make([]string, 850)
	for i := range ids {
		ids[i] = fmt.Sprintf("account-%d", i)
	}

	report := Verify(1000, ids)
	assert.Equal(t, RequiresRetry, report.Decision)
	assert.Equal(t, 150, report.Shortfall)
	assert.InDelta(t, 0.85, report.Ratio, 0.0001)
}

func TestVerify_NoShortfallWhenOverDelivered(t *testing.T) {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("account-%d", i)
	}

	report := Verify(10, ids)
	assert.Zero(t, report.Shortfall)
	assert.Equal(t, Accept, report.Decision)
}
