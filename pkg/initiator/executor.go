// Package initiator wraps the two external command-line tools the iSCSI
// driver depends on (iscsiadm, multipath) behind a narrow Executor
// interface, so the driver's state-machine logic can be tested without a
// real initiator installed.
package initiator

import (
	"context"
	"fmt"
)

// ProcessError reports that an external tool exited with a code outside
// the caller's accept-set.
type ProcessError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s %v: exit code %d: %s", e.Name, e.Args, e.ExitCode, e.Stderr)
}

// Executor runs an external tool and classifies its exit code against an
// accept-set. A nil acceptExitCodes is equivalent to []int{0}. Any exit
// code outside the set is reported as a *ProcessError.
type Executor interface {
	Run(ctx context.Context, acceptExitCodes []int, name string, args ...string) (stdout, stderr string, err error)
}

func accepts(code int, acceptExitCodes []int) bool {
	if len(acceptExitCodes) == 0 {
		return code == 0
	}
	for _, c := range acceptExitCodes {
		if c == code {
			return true
		}
	}
	return false
}
