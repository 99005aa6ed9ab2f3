
package adminauth

import (
	"testing"
	"time"
)

const (
	testCode   = "122911"
	testAnswer = "avik"
)

func newTestManager() *Manager {
	return NewManager(testCode, testAnswer, 30*time.Minute)
}

func TestChallengeFlow(t *testing.T) {
	m := newTestManager()
	const uid = int64(99)

	if m.Stage(uid) != StageNone {
		t.Fatal("fresh manager should have no session")
	}

	m.Begin(uid)
	if m.Stage(uid) != StageCode {
		t.Fatalf("after Begin stage = %v, want awaiting code", m.Stage(uid))
	}

	res, remaining := m.SubmitCode(uid, "000000")
	if res != ResultRetry || remaining != 2 {
		t.Fatalf("first wrong code: got (%v, %d), want (retry, 2)", res, remaining)
	}
	res, remaining = m.SubmitCode(uid, "000000")
	if res != ResultRetry || remaining != 1 {
		t.Fatalf("second wrong code: got (%v, %d), want (retry, 1)", res, remaining)
	}

	// Third try with the right code succeeds: the budget counts misses, not
	// total inputs.
	res, _ = m.SubmitCode(uid, testCode)
	if res != ResultNext {
		t.Fatalf("correct code after two misses: got %v, want next", res)
	}
	if m.Stage(uid) != StageAnswer {
		t.Fatalf("stage = %v, want awaiting answer", m.Stage(uid))
	}

	res, remaining = m.SubmitAnswer(uid, "bob")
	if res != ResultRetry || remaining != 2 {
		t.Fatalf("wrong answer: got (%v, %d), want (retry, 2)", res, remaining)
	}

	// Answer comparison trims and lower-cases the input.
	res, _ = m.SubmitAnswer(uid, "  AVIK ")
	if res != ResultAuthed {
		t.Fatalf("normalized answer: got %v, want authed", res)
	}
	if !m.IsAuthenticated(uid) {
		t.Fatal("expected authenticated session")
	}
}

func TestCodeIsExactMatch(t *testing.T) {
	m := newTestManager()
	const uid = int64(99)
	m.Begin(uid)

	// Unlike the answer, the code gets no normalization.
	if res, _ := m.SubmitCode(uid, " 122911 "); res != ResultRetry {
		t.Fatalf("padded code: got %v, want retry", res)
	}
	if res, _ := m.SubmitCode(uid, testCode); res != ResultNext {
		t.Fatalf("exact code: got %v, want next", res)
	}
}

func TestCodeLockout(t *testing.T) {
	m := newTestManager()
	const uid = int64(99)
	m.Begin(uid)

	m.SubmitCode(uid, "1")
	m.SubmitCode(uid, "2")
	res, _ := m.SubmitCode(uid, "3")
	if res != ResultLocked {
		t.Fatalf("third wrong code: got %v, want locked", res)
	}
	if m.Stage(uid) != StageNone {
		t.Fatal("lockout must destroy the session")
	}

	// The correct code after lockout makes no progress without a restart.
	if res, _ := m.SubmitCode(uid, testCode); res != ResultNoSession {
		t.Fatalf("code after lockout: got %v, want no session", res)
	}

	m.Begin(uid)
	if res, _ := m.SubmitCode(uid, testCode); res != ResultNext {
		t.Fatalf("restarted flow should accept the code, got %v", res)
	}
}

func TestAnswerLockout(t *testing.T) {
	m := newTestManager()
	const uid = int64(99)
	m.Begin(uid)
	m.SubmitCode(uid, testCode)

	// The answer stage has its own budget regardless of code-stage misses.
	m.SubmitAnswer(uid, "x")
	m.SubmitAnswer(uid, "y")
	res, _ := m.SubmitAnswer(uid, "z")
	if res != ResultLocked {
		t.Fatalf("third wrong answer: got %v, want locked", res)
	}
	if res, _ := m.SubmitAnswer(uid, testAnswer); res != ResultNoSession {
		t.Fatalf("answer after lockout: got %v, want no session", res)
	}
	if m.IsAuthenticated(uid) {
		t.Fatal("locked-out user must not be authenticated")
	}
}

func TestNoStageSkipping(t *testing.T) {
	m := newTestManager()
	const uid = int64(99)

	if res, _ := m.SubmitCode(uid, testCode); res != ResultNoSession {
		t.Fatalf("code without Begin: got %v, want no session", res)
	}
	if res, _ := m.SubmitAnswer(uid, testAnswer); res != ResultNoSession {
		t.Fatalf("answer without Begin: got %v, want no session", res)
	}

	m.Begin(uid)
	// The answer is not accepted while the code is still pending.
	if res, _ := m.SubmitAnswer(uid, testAnswer); res != ResultNoSession {
		t.Fatalf("answer in code stage: got %v, want no session", res)
	}
	if m.IsAuthenticated(uid) {
		t.Fatal("must not authenticate without completing both steps")
	}
}

func TestCancelAndLogout(t *testing.T) {
	m := newTestManager()
	const uid = int64(99)

	m.Begin(uid)
	m.Cancel(uid)
	if m.Stage(uid) != StageNone {
		t.Fatal("cancel should destroy the in-progress session")
	}

	m.Begin(uid)
	m.SubmitCode(uid, testCode)
	m.SubmitAnswer(uid, testAnswer)
	if !m.IsAuthenticated(uid) {
		t.Fatal("expected authenticated session")
	}
	m.Logout(uid)
	if m.IsAuthenticated(uid) {
		t.Fatal("logout should destroy the session")
	}
	if m.Stage(uid) != StageNone {
		t.Fatal("post-logout stage should read not started")
	}
}

func TestSessionExpiry(t *testing.T) {
	m := NewManager(testCode, testAnswer, 50*time.Millisecond)
	const uid = int64(99)

	m.Begin(uid)
	m.SubmitCode(uid, testCode)
	m.SubmitAnswer(uid, testAnswer)
	if !m.IsAuthenticated(uid) {
		t.Fatal("expected authenticated session")
	}

	time.Sleep(120 * time.Millisecond)
	if m.IsAuthenticated(uid) {
		t.Fatal("session should have expired after the inactivity window")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m := newTestManager()

	m.Begin(1)
	m.Begin(2)
	m.SubmitCode(1, testCode)
	m.SubmitAnswer(1, testAnswer)

	if !m.IsAuthenticated(1) {
		t.Fatal("user 1 should be authenticated")
	}
	if m.IsAuthenticated(2) {
		t.Fatal("user 2 never completed the challenge")
	}
	if m.Stage(2) != StageCode {
		t.Fatalf("user 2 stage = %v, want awaiting code", m.Stage(2))
	}
}
