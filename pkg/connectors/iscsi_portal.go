package connectors

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"github.com/novahost/blockattach/pkg/hypervisor"
	"github.com/novahost/blockattach/pkg/initiator"
)

// Accept-sets for the various iscsiadm/multipath invocations. Unless noted
// otherwise, each mirrors the check_exit_code kwarg (or its absence,
// meaning {0}) of the corresponding call in the original driver.
var (
	acceptProbe            = []int{21, 255}
	acceptLoginCall        = []int{0, 255}
	acceptSessionList      = []int{0, 21, 1}
	acceptTeardownStep     = []int{0, 21, 255}
	acceptDiscovery        = []int{0, 255}
	acceptRescan           = []int{0, 1, 21, 255}
	acceptMultipathRescan  = []int{0, 1, 21}
	acceptMultipathResolve = []int{0, 1}
	acceptMultipathRemove  = []int{0, 1}
)

const loginDuplicateSessionExitCode = 15

type iscsiSession struct {
	portal string
	iqn    string
}

// stripTag removes the trailing ",tag" fragment from a portal address
// before comparison.
func stripTag(portal string) string {
	if i := strings.IndexByte(portal, ','); i >= 0 {
		return portal[:i]
	}
	return portal
}

// parseSessions parses `iscsiadm -m session` output: only lines beginning
// "tcp:" carry a session; field[2] is the portal, field[3] is the iqn.
func parseSessions(output string) []iscsiSession {
	var sessions []iscsiSession
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "tcp:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		sessions = append(sessions, iscsiSession{portal: fields[2], iqn: fields[3]})
	}
	return sessions
}

func sessionExists(sessions []iscsiSession, portal, iqn string) bool {
	want := stripTag(portal)
	for _, s := range sessions {
		if stripTag(s.portal) == want && s.iqn == iqn {
			return true
		}
	}
	return false
}

// parseDiscoveryPortals parses `iscsiadm -m discovery -t sendtargets`
// output: the first whitespace field of each line is a portal address.
func parseDiscoveryPortals(output string) []string {
	var portals []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		portals = append(portals, fields[0])
	}
	return portals
}

func (d *ISCSIDriver) updateNodeAttribute(ctx context.Context, portal, iqn, key, value string) error {
	if _, _, err := d.Executor.Run(ctx, nil, "iscsiadm", "-m", "node", "-T", iqn, "-p", portal, "--op", "update", "-n", key, "-v", value); err != nil {
		return status.Errorf(codes.Internal, "iscsiadm --op update %s=%s for %s/%s: %v", key, value, portal, iqn, err)
	}
	return nil
}

// connectToPortal is the per-portal login routine: probe for an existing
// node record, create one if absent, apply CHAP attributes when present,
// and log in unless a matching session is already listed. Duplicate-login
// suppression via the session scan is required — issuing --login against
// an already-logged-in node can crash the initiator tool on some versions.
func (d *ISCSIDriver) connectToPortal(ctx context.Context, portal, iqn string, req *hypervisor.ConnectionRequest) error {
	if _, _, err := d.Executor.Run(ctx, nil, "iscsiadm", "-m", "node", "-T", iqn, "-p", portal); err != nil {
		var procErr *initiator.ProcessError
		if !errors.As(err, &procErr) || (procErr.ExitCode != 21 && procErr.ExitCode != 255) {
			return status.Errorf(codes.Internal, "iscsiadm probe %s/%s: %v", portal, iqn, err)
		}
		if _, _, newErr := d.Executor.Run(ctx, nil, "iscsiadm", "-m", "node", "-T", iqn, "-p", portal, "--op", "new"); newErr != nil {
			return status.Errorf(codes.Internal, "iscsiadm --op new %s/%s: %v", portal, iqn, newErr)
		}
	}

	if authMethod, ok := req.StringField("auth_method"); ok {
		if err := d.updateNodeAttribute(ctx, portal, iqn, "node.session.auth.authmethod", authMethod); err != nil {
			return err
		}
		username, _ := req.StringField("auth_username")
		if err := d.updateNodeAttribute(ctx, portal, iqn, "node.session.auth.username", username); err != nil {
			return err
		}
		password, _ := req.StringField("auth_password")
		if err := d.updateNodeAttribute(ctx, portal, iqn, "node.session.auth.password", password); err != nil {
			return err
		}
	}

	out, _, err := d.Executor.Run(ctx, acceptSessionList, "iscsiadm", "-m", "session")
	if err != nil {
		return status.Errorf(codes.Internal, "iscsiadm -m session: %v", err)
	}

	if sessionExists(parseSessions(out), portal, iqn) {
		klog.V(4).Infof("connectors: session already active for %s/%s, skipping login", portal, iqn)
		return nil
	}

	if _, _, loginErr := d.Executor.Run(ctx, acceptLoginCall, "iscsiadm", "-m", "node", "-T", iqn, "-p", portal, "--login"); loginErr != nil {
		var procErr *initiator.ProcessError
		if errors.As(loginErr, &procErr) && procErr.ExitCode == loginDuplicateSessionExitCode {
			klog.V(4).Infof("connectors: %s/%s already logged in (duplicate session), marking startup automatic", portal, iqn)
			return d.updateNodeAttribute(ctx, portal, iqn, "node.startup", "automatic")
		}
		return status.Errorf(codes.Internal, "iscsiadm --login %s/%s: %v", portal, iqn, loginErr)
	}

	return d.updateNodeAttribute(ctx, portal, iqn, "node.startup", "automatic")
}

// disconnectPortal tears down the node record for (portal, iqn): sets
// node.startup=manual, logs out, then deletes the record. Best-effort —
// failures are logged, never propagated, since disconnect must complete
// even when the host is left in an inconsistent state.
func (d *ISCSIDriver) disconnectPortal(ctx context.Context, portal, iqn string) {
	if _, _, err := d.Executor.Run(ctx, acceptTeardownStep, "iscsiadm", "-m", "node", "-T", iqn, "-p", portal, "--op", "update", "-n", "node.startup", "-v", "manual"); err != nil {
		klog.Warningf("connectors: failed to set node.startup=manual for %s/%s: %v", portal, iqn, err)
	}
	if _, _, err := d.Executor.Run(ctx, acceptTeardownStep, "iscsiadm", "-m", "node", "-T", iqn, "-p", portal, "--logout"); err != nil {
		klog.Warningf("connectors: failed to logout %s/%s: %v", portal, iqn, err)
	}
	if _, _, err := d.Executor.Run(ctx, acceptTeardownStep, "iscsiadm", "-m", "node", "-T", iqn, "-p", portal, "--op", "delete"); err != nil {
		klog.Warningf("connectors: failed to delete node record %s/%s: %v", portal, iqn, err)
	}
}

// extractPortalToken extracts the portal token from a by-path entry name
// (e.g. "ip-10.0.0.1:3260-iscsi-iqn.test:1-lun-0" -> "10.0.0.1:3260") by
// splitting on "-" and taking field[1]. Dashes inside the iqn do not
// affect the result, but a portal that itself contains a dash (e.g. a
// hostname) is truncated at its first dash; this only runs during full
// multipath teardown, a comparatively rare path.
func extractPortalToken(entry string) string {
	fields := strings.Split(entry, "-")
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// disconnectAllPortalsForIQN walks /dev/disk/by-path for entries
// referencing iqn, tears down the portal for each, and rescans multipath.
func (d *ISCSIDriver) disconnectAllPortalsForIQN(ctx context.Context, iqn string) {
	entries, err := listByPathEntries()
	if err != nil {
		klog.Warningf("connectors: listing %s failed: %v", byPathDir, err)
		return
	}

	for _, entry := range entries {
		if !strings.Contains(entry, iqn) {
			continue
		}
		portal := extractPortalToken(entry)
		if portal == "" {
			continue
		}
		d.disconnectPortal(ctx, portal, iqn)
	}

	d.rescanMultipath(ctx)
}
