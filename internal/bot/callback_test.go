
package bot

import "testing"

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data string
		ok   bool
		want action
	}{
		{"menu", true, action{kind: actionMainMenu}},
		{"verify", true, action{kind: actionVerifyJoin}},
		{"admin", true, action{kind: actionAdminDashboard}},
		{"auth_cancel", true, action{kind: actionAuthCancel}},
		{"logout", true, action{kind: actionAdminLogout}},
		{"fj", true, action{kind: actionFJMenu}},
		{"fj_add", true, action{kind: actionFJAdd}},
		{"fj_remove", true, action{kind: actionFJRemove}},
		{"fj_confirm", true, action{kind: actionFJConfirm}},
		{"bc_new", true, action{kind: actionBroadcastNew}},
		{"bc_history", true, action{kind: actionBroadcastHistory}},
		{"backup", true, action{kind: actionBackup}},
		{"noop", true, action{kind: actionNoop}},

		{"fj_del|-100111", true, action{kind: actionFJDelete, channelID: -100111}},
		{"fj_toggle|-1001234567890", true, action{kind: actionFJToggle, channelID: -1001234567890}},

		{"", false, action{}},
		{"bogus", false, action{}},
		{"fj_del", false, action{}},
		{"fj_del|", false, action{}},
		{"fj_del|abc", false, action{}},
		{"fj_toggle|1|2", false, action{}},
		{"menu|5", false, action{}},
		{"|", false, action{}},
	}

	for _, tc := range cases {
		got, ok := parseCallback(tc.data)
		if ok != tc.ok {
			t.Errorf("parseCallback(%q) ok = %v, want %v", tc.data, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("parseCallback(%q) = %+v, want %+v", tc.data, got, tc.want)
		}
	}
}

func TestCallbackDataRoundTrip(t *testing.T) {
	for _, id := range []int64{-100111, -1001234567890} {
		if act, ok := parseCallback(fjDeleteData(id)); !ok || act.kind != actionFJDelete || act.channelID != id {
			t.Errorf("delete round trip for %d: %+v ok=%v", id, act, ok)
		}
		if act, ok := parseCallback(fjToggleData(id)); !ok || act.kind != actionFJToggle || act.channelID != id {
			t.Errorf("toggle round trip for %d: %+v ok=%v", id, act, ok)
		}
	}
}
