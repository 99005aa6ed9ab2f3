
// Package adminauth gates the admin dashboard behind a two-step challenge:
// a shared secret code, then a fixed security answer. It layers on top of
// the durable admin flag in storage; sessions are process-local and never
// persisted.
package adminauth

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Stage int

const (
	StageNone Stage = iota
	StageCode
	StageAnswer
	StageAuthed
)

func (s Stage) String() string {
	switch s {
	case StageCode:
		return "awaiting_code"
	case StageAnswer:
		return "awaiting_answer"
	case StageAuthed:
		return "authenticated"
	default:
		return "not_started"
	}
}

// Result of submitting one challenge input.
type Result int

const (
	// ResultNoSession means no auth flow is in progress for the user.
	ResultNoSession Result = iota
	// ResultRetry means the input was wrong but attempts remain in this stage.
	ResultRetry
	// ResultLocked means the attempt budget for the stage is exhausted and
	// the session was destroyed; the flow must restart from the beginning.
	ResultLocked
	// ResultNext means the code was accepted and the answer is now expected.
	ResultNext
	// ResultAuthed means the answer was accepted and the session is live.
	ResultAuthed
)

// maxAttempts is the per-stage budget of wrong inputs before lockout.
const maxAttempts = 3

type session struct {
	stage    Stage
	attempts int
	started  time.Time
}

// Manager holds ephemeral admin auth sessions keyed by user id. Sessions
// expire after the configured inactivity window; expiry is enforced by the
// cache and re-checked lazily on access, never by the caller.
type Manager struct {
	code   string
	answer string

	mu       sync.Mutex
	sessions *expirable.LRU[int64, *session]
}

// NewManager builds a Manager with the configured secret code, secret
// answer, and session inactivity timeout.
func NewManager(code, answer string, timeout time.Duration) *Manager {
	return &Manager{
		code:     code,
		answer:   answer,
		sessions: expirable.NewLRU[int64, *session](1024, nil, timeout),
	}
}

// Begin starts (or restarts) the challenge flow. The caller must have
// already established that the user is a stored admin.
func (m *Manager) Begin(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Add(userID, &session{stage: StageCode, started: time.Now()})
}

// Stage reports the user's current auth stage. Expired sessions read as
// StageNone.
func (m *Manager) Stage(userID int64) Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(userID)
	if !ok {
		return StageNone
	}
	return s.stage
}

// SubmitCode checks an input against the secret code. Comparison is exact
// string equality with no normalization. Returns the result and the number
// of attempts remaining in this stage.
func (m *Manager) SubmitCode(userID int64, input string) (Result, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(userID)
	if !ok || s.stage != StageCode {
		return ResultNoSession, 0
	}
	if input == m.code {
		s.stage = StageAnswer
		s.attempts = 0
		m.touch(userID, s)
		return ResultNext, maxAttempts
	}
	return m.miss(userID, s)
}

// SubmitAnswer checks an input against the secret answer, lower-cased and
// trimmed.
func (m *Manager) SubmitAnswer(userID int64, input string) (Result, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(userID)
	if !ok || s.stage != StageAnswer {
		return ResultNoSession, 0
	}
	if strings.ToLower(strings.TrimSpace(input)) == m.answer {
		s.stage = StageAuthed
		s.attempts = 0
		m.touch(userID, s)
		log.Printf("[adminauth] user %d authenticated", userID)
		return ResultAuthed, maxAttempts
	}
	return m.miss(userID, s)
}

func (m *Manager) miss(userID int64, s *session) (Result, int) {
	s.attempts++
	log.Printf("[adminauth] failed %s attempt %d/%d for user %d", s.stage, s.attempts, maxAttempts, userID)
	if s.attempts >= maxAttempts {
		m.sessions.Remove(userID)
		return ResultLocked, 0
	}
	m.touch(userID, s)
	return ResultRetry, maxAttempts - s.attempts
}

// IsAuthenticated reports whether the user holds a live authenticated
// session, and refreshes the inactivity window when they do.
func (m *Manager) IsAuthenticated(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(userID)
	if !ok || s.stage != StageAuthed {
		return false
	}
	m.touch(userID, s)
	return true
}

// Cancel aborts an in-progress challenge. Harmless when no flow is active.
func (m *Manager) Cancel(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions.Remove(userID) {
		log.Printf("[adminauth] auth cancelled for user %d", userID)
	}
}

// Logout destroys an authenticated session immediately.
func (m *Manager) Logout(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions.Remove(userID) {
		log.Printf("[adminauth] user %d logged out", userID)
	}
}

// touch re-inserts the entry so the cache TTL restarts from now.
func (m *Manager) touch(userID int64, s *session) {
	m.sessions.Add(userID, s)
}
