package connectors

import (
	"context"

	"github.com/novahost/blockattach/pkg/initiator"
)

// fakeCall records one invocation made through fakeExecutor.
type fakeCall struct {
	name string
	args []string
}

// fakeExecutor is a hand-rolled Executor test double in the func-field
// style used throughout this codebase's mock API clients: no codegen, the
// test wires exactly the behavior the scenario needs.
type fakeExecutor struct {
	calls []fakeCall

	// handle decides the outcome for a single invocation. accept is the
	// caller's accept-set (nil meaning {0}); returning an exit code outside
	// it produces a *initiator.ProcessError, matching RealExecutor.
	handle func(call fakeCall, accept []int) (stdout, stderr string, exitCode int)
}

var _ initiator.Executor = (*fakeExecutor)(nil)

func (f *fakeExecutor) Run(_ context.Context, acceptExitCodes []int, name string, args ...string) (string, string, error) {
	call := fakeCall{name: name, args: args}
	f.calls = append(f.calls, call)

	if f.handle == nil {
		return "", "", nil
	}

	stdout, stderr, exitCode := f.handle(call, acceptExitCodes)
	if !acceptsCode(exitCode, acceptExitCodes) {
		return stdout, stderr, &initiator.ProcessError{Name: name, Args: args, ExitCode: exitCode, Stderr: stderr}
	}
	return stdout, stderr, nil
}

// acceptsCode mirrors initiator's unexported accept-set check: nil/empty
// means {0}.
func acceptsCode(code int, acceptExitCodes []int) bool {
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
