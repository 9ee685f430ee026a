package connectors

import (
	"context"
	"testing"

	"github.com/novahost/blockattach/pkg/hypervisor"
)

func TestStripTag(t *testing.T) {
	cases := map[string]string{
		"10.0.0.1:3260,1": "10.0.0.1:3260",
		"10.0.0.1:3260":   "10.0.0.1:3260",
		"":                "",
	}
	for in, want := range cases {
		if got := stripTag(in); got != want {
			t.Errorf("stripTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSessions(t *testing.T) {
	output := "tcp: [1] 10.0.0.1:3260,1 iqn.2020-01.example:target1 (non-flash)\n" +
		"tcp: [2] 10.0.0.2:3260,1 iqn.2020-01.example:target2 (non-flash)\n" +
		"garbage line\n"

	sessions := parseSessions(output)
	if len(sessions) != 2 {
		t.Fatalf("parseSessions() returned %d sessions, want 2", len(sessions))
	}
	if sessions[0].portal != "10.0.0.1:3260,1" || sessions[0].iqn != "iqn.2020-01.example:target1" {
		t.Errorf("unexpected first session: %+v", sessions[0])
	}
}

func TestSessionExists(t *testing.T) {
	sessions := []iscsiSession{
		{portal: "10.0.0.1:3260,1", iqn: "iqn.2020-01.example:target1"},
	}

	if !sessionExists(sessions, "10.0.0.1:3260", "iqn.2020-01.example:target1") {
		t.Error("expected session match ignoring the ,tag suffix")
	}
	if sessionExists(sessions, "10.0.0.1:3260", "iqn.2020-01.example:other") {
		t.Error("expected no match for a different iqn")
	}
}

func TestParseDiscoveryPortals(t *testing.T) {
	output := "10.0.0.1:3260,1 iqn.2020-01.example:target1\n" +
		"10.0.0.2:3260,1 iqn.2020-01.example:target1\n\n"

	portals := parseDiscoveryPortals(output)
	want := []string{"10.0.0.1:3260,1", "10.0.0.2:3260,1"}
	if len(portals) != len(want) {
		t.Fatalf("parseDiscoveryPortals() = %v, want %v", portals, want)
	}
	for i := range want {
		if portals[i] != want[i] {
			t.Errorf("portal[%d] = %q, want %q", i, portals[i], want[i])
		}
	}
}

func TestExtractPortalToken(t *testing.T) {
	got := extractPortalToken("ip-10.0.0.1:3260-iscsi-iqn.2020-01.example:target1-lun-0")
	if got != "10.0.0.1:3260" {
		t.Errorf("extractPortalToken() = %q, want %q", got, "10.0.0.1:3260")
	}
	if got := extractPortalToken("no-dashes-at-all-but-short"); got == "" {
		t.Error("extractPortalToken() returned empty for a well-formed short entry")
	}
	if got := extractPortalToken("onlyone"); got != "" {
		t.Errorf("extractPortalToken() = %q, want empty for a single-field entry", got)
	}
}

func req(data map[string]any) *hypervisor.ConnectionRequest {
	return &hypervisor.ConnectionRequest{DriverVolumeType: DriverTypeISCSI, Data: data, Serial: "vol-1"}
}

func TestConnectToPortalCreatesMissingNodeRecord(t *testing.T) {
	created := false
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		switch {
		case call.name == "iscsiadm" && len(call.args) >= 1 && call.args[0] == "-m" && containsArg(call.args, "node") && !containsArg(call.args, "--op") && !containsArg(call.args, "--login"):
			return "", "", 21 // node record absent
		case containsArg(call.args, "new"):
			created = true
			return "", "", 0
		case containsArg(call.args, "session"):
			return "tcp: [1] 10.0.0.1:3260,1 iqn.test:1 (non-flash)\n", "", 0
		case containsArg(call.args, "--login"):
			t.Fatal("--login should not run when a matching session already exists")
			return "", "", 0
		case containsArg(call.args, "update"):
			return "", "", 0
		default:
			return "", "", 0
		}
	}}

	d := &ISCSIDriver{Executor: exec}
	if err := d.connectToPortal(context.Background(), "10.0.0.1:3260", "iqn.test:1", req(nil)); err != nil {
		t.Fatalf("connectToPortal() error = %v", err)
	}
	if !created {
		t.Error("--op new was not issued after the probe reported exit 21")
	}
}

func TestConnectToPortalAppliesCHAPBeforeLogin(t *testing.T) {
	var updates []string
	updatesAtLogin := -1
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		switch {
		case containsArg(call.args, "update"):
			updates = append(updates, call.args[len(call.args)-1])
			return "", "", 0
		case containsArg(call.args, "session"):
			return "", "", 0
		case containsArg(call.args, "--login"):
			updatesAtLogin = len(updates)
			return "", "", 0
		default:
			return "", "", 0 // probe succeeds, record already exists
		}
	}}

	d := &ISCSIDriver{Executor: exec}
	r := req(map[string]any{
		"auth_method":   "CHAP",
		"auth_username": "alice",
		"auth_password": "secret",
	})
	if err := d.connectToPortal(context.Background(), "10.0.0.1:3260", "iqn.test:1", r); err != nil {
		t.Fatalf("connectToPortal() error = %v", err)
	}

	if updatesAtLogin != 3 {
		t.Errorf("--login ran after %d attribute update(s), want 3 (the CHAP attributes)", updatesAtLogin)
	}

	want := []string{"CHAP", "alice", "secret", "automatic"}
	if len(updates) != len(want) {
		t.Fatalf("updates = %v, want %v", updates, want)
	}
	for i := range want {
		if updates[i] != want[i] {
			t.Errorf("update[%d] = %q, want %q", i, updates[i], want[i])
		}
	}
}

func TestConnectToPortalDuplicateLoginExitCodeMarksAutomaticAndReturns(t *testing.T) {
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		switch {
		case containsArg(call.args, "session"):
			return "", "", 0
		case containsArg(call.args, "--login"):
			return "", "already logged in", 15
		case containsArg(call.args, "update"):
			return "", "", 0
		default:
			return "", "", 0
		}
	}}

	d := &ISCSIDriver{Executor: exec}
	if err := d.connectToPortal(context.Background(), "10.0.0.1:3260", "iqn.test:1", req(nil)); err != nil {
		t.Fatalf("connectToPortal() error = %v, want nil (exit 15 is treated as success)", err)
	}
}

func TestConnectToPortalOtherLoginErrorPropagates(t *testing.T) {
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		switch {
		case containsArg(call.args, "session"):
			return "", "", 0
		case containsArg(call.args, "--login"):
			return "", "network unreachable", 7
		default:
			return "", "", 0
		}
	}}

	d := &ISCSIDriver{Executor: exec}
	if err := d.connectToPortal(context.Background(), "10.0.0.1:3260", "iqn.test:1", req(nil)); err == nil {
		t.Fatal("connectToPortal() error = nil, want an error for an undocumented login failure")
	}
}

func TestConnectToPortalOtherProbeErrorPropagates(t *testing.T) {
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		return "", "permission denied", 1
	}}

	d := &ISCSIDriver{Executor: exec}
	err := d.connectToPortal(context.Background(), "10.0.0.1:3260", "iqn.test:1", req(nil))
	if err == nil {
		t.Fatal("connectToPortal() error = nil, want an error for a probe failure outside {21,255}")
	}
}

func TestDisconnectPortalIsBestEffort(t *testing.T) {
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		return "", "boom", 99
	}}

	d := &ISCSIDriver{Executor: exec}
	d.disconnectPortal(context.Background(), "10.0.0.1:3260", "iqn.test:1")

	if len(exec.calls) != 3 {
		t.Fatalf("disconnectPortal() made %d calls, want 3 (manual, logout, delete) even though each fails", len(exec.calls))
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
