package run

import (
	"github.com/aiandme-io/humanbound-engine/internal/finding"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Process exit codes for CI integrations.
const (
	ExitOK        = 0
	ExitFindings  = 1
	ExitRunFailed = 2
)

// ExitCode maps a finished run to a process exit code: 2 when the run
// itself failed, 1 when any finding is at or above the threshold, 0
// otherwise.
func ExitCode(status Status, findings []*finding.Finding, failOn types.Severity) int {
	if status == StatusFailed {
		return ExitRunFailed
	}
	for _, f := range findings {
		if f.Severity.AtLeast(failOn) {
			return ExitFindings
		}
	}
	return ExitOK
}
