package connectors

import (
	"context"

	"github.com/novahost/blockattach/pkg/initiator"
)

// Session is a read-only view of one logged-in iSCSI session, exported
// for diagnostic tooling outside this package.
type Session struct {
	Portal string
	IQN    string
}

// ListISCSISessions runs `iscsiadm -m session` and parses its output the
// same way ISCSIDriver.connectToPortal does when checking for an existing
// session, so the diagnostic CLI and the driver never disagree about what
// a "logged in" session looks like.
func ListISCSISessions(ctx context.Context, exec initiator.Executor) ([]Session, error) {
	out, _, err := exec.Run(ctx, acceptSessionList, "iscsiadm", "-m", "session")
	if err != nil {
		return nil, err
	}

	parsed := parseSessions(out)
	sessions := make([]Session, 0, len(parsed))
	for _, s := range parsed {
		sessions = append(sessions, Session{Portal: s.portal, IQN: s.iqn})
	}
	return sessions, nil
}
