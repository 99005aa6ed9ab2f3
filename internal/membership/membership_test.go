
package membership

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/unknownwarrior911/course-sales-bot/internal/gate"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		status   string
		isMember bool
		want     gate.Status
	}{
		{"creator", false, gate.StatusOwner},
		{"administrator", false, gate.StatusAdmin},
		{"member", false, gate.StatusMember},
		{"restricted", true, gate.StatusMember},
		{"restricted", false, gate.StatusLeft},
		{"left", false, gate.StatusLeft},
		{"kicked", false, gate.StatusKicked},
		{"", false, gate.StatusError},
		{"something-new", false, gate.StatusError},
	}

	for _, tc := range cases {
		m := tgbotapi.ChatMember{Status: tc.status, IsMember: tc.isMember}
		if got := mapStatus(m); got != tc.want {
			t.Errorf("mapStatus(%q, member=%v) = %v, want %v", tc.status, tc.isMember, got, tc.want)
		}
	}
}
