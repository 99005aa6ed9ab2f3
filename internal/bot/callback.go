
package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback data is decoded once at the update boundary into a typed action;
// handlers switch on the kind instead of re-parsing strings.
type actionKind int

const (
	actionUnknown actionKind = iota
	actionMainMenu
	actionVerifyJoin
	actionAdminDashboard
	actionAuthCancel
	actionAdminLogout
	actionFJMenu
	actionFJAdd
	actionFJRemove
	actionFJDelete
	actionFJToggle
	actionFJConfirm
	actionBroadcastNew
	actionBroadcastHistory
	actionBackup
	actionNoop
)

type action struct {
	kind actionKind

	// ChannelID payload for fj_del / fj_toggle.
	channelID int64
}

var actionTokens = map[string]actionKind{
	"menu":        actionMainMenu,
	"verify":      actionVerifyJoin,
	"admin":       actionAdminDashboard,
	"auth_cancel": actionAuthCancel,
	"logout":      actionAdminLogout,
	"fj":          actionFJMenu,
	"fj_add":      actionFJAdd,
	"fj_remove":   actionFJRemove,
	"fj_confirm":  actionFJConfirm,
	"bc_new":      actionBroadcastNew,
	"bc_history":  actionBroadcastHistory,
	"backup":      actionBackup,
	"noop":        actionNoop,
}

func parseCallback(data string) (action, bool) {
	parts := strings.Split(data, "|")
	if kind, ok := actionTokens[parts[0]]; ok && len(parts) == 1 {
		return action{kind: kind}, true
	}
	if len(parts) == 2 {
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return action{}, false
		}
		switch parts[0] {
		case "fj_del":
			return action{kind: actionFJDelete, channelID: id}, true
		case "fj_toggle":
			return action{kind: actionFJToggle, channelID: id}, true
		}
	}
	return action{}, false
}

func fjDeleteData(channelID int64) string {
	return fmt.Sprintf("fj_del|%d", channelID)
}

func fjToggleData(channelID int64) string {
	return fmt.Sprintf("fj_toggle|%d", channelID)
}
