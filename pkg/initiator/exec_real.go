package initiator

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"k8s.io/klog/v2"
)

// DefaultTimeout bounds a single external tool invocation. iscsiadm and
// multipath calls are expected to return in well under this.
const DefaultTimeout = 30 * time.Second

// RealExecutor shells out to the host's iscsiadm/multipath binaries via
// os/exec, the same pattern the node driver uses for its own tool calls
// (exec.CommandContext with a bounded timeout).
type RealExecutor struct {
	// PrivilegeEscalation prefixes every invocation, e.g. []string{"sudo"},
	// expressing run_as_root without hard-coding a specific mechanism. Nil
	// or empty runs the tool directly.
	PrivilegeEscalation []string

	// Timeout bounds each invocation; zero uses DefaultTimeout.
	Timeout time.Duration
}

var _ Executor = (*RealExecutor)(nil)

func (e *RealExecutor) Run(ctx context.Context, acceptExitCodes []int, name string, args ...string) (string, string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append(append([]string{}, e.PrivilegeEscalation...), name)
	argv = append(argv, args...)

	//nolint:gosec // argv is built from caller-supplied portal/iqn/lun fields, matching the driver's documented contract
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		klog.V(4).Infof("%s %v: exit 0, stdout=%q", name, args, stdout.String())
		return stdout.String(), stderr.String(), nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), err
	}

	code := exitErr.ExitCode()
	if accepts(code, acceptExitCodes) {
		klog.V(4).Infof("%s %v: exit %d accepted, stdout=%q", name, args, code, stdout.String())
		return stdout.String(), stderr.String(), nil
	}

	klog.Warningf("%s %v: exit %d, stderr=%q", name, args, code, stderr.String())
	return stdout.String(), stderr.String(), &ProcessError{
		Name:     name,
		Args:     args,
		ExitCode: code,
		Stderr:   stderr.String(),
	}
}
