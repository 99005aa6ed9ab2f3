
// Package gate decides whether an incoming interaction may proceed: admins
// and already-verified users pass immediately, everyone else must currently
// be a member of every active force-join channel.
package gate

import (
	"context"
	"log"
	"sync"

	"github.com/unknownwarrior911/course-sales-bot/internal/db"
)

// Status is a user's relationship to a single channel as reported by the
// membership oracle.
type Status int

const (
	StatusMember Status = iota
	StatusAdmin
	StatusOwner
	StatusLeft
	StatusKicked
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusMember:
		return "member"
	case StatusAdmin:
		return "admin"
	case StatusOwner:
		return "owner"
	case StatusLeft:
		return "left"
	case StatusKicked:
		return "kicked"
	default:
		return "error"
	}
}

// joined reports whether the status counts as channel membership.
func (s Status) joined() bool {
	return s == StatusMember || s == StatusAdmin || s == StatusOwner
}

// Store is the slice of the persistence gateway the gate needs.
type Store interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	IsUserVerified(ctx context.Context, userID int64) (bool, error)
	MarkUserVerified(ctx context.Context, userID int64) error
	ActiveForceJoinChannels(ctx context.Context) ([]db.ForceJoinChannel, error)
}

// Oracle reports membership for one (channel, user) pair. Implementations
// must bound their own call time; a timeout is reported as StatusError.
type Oracle interface {
	MembershipStatus(ctx context.Context, channelID, userID int64) Status
}

// Decision is the outcome of one gate evaluation. When Allowed is false,
// Missing holds the channels the user still has to join, in the order the
// active set was checked, with no duplicates.
type Decision struct {
	Allowed bool
	Missing []db.ForceJoinChannel
}

type Gate struct {
	store  Store
	oracle Oracle
}

func New(store Store, oracle Oracle) *Gate {
	return &Gate{store: store, oracle: oracle}
}

// Authorize evaluates the gate for userID.
//
// The force-join requirement is a marketing gate, not a security boundary,
// so every failure path here is fail-open: an unreachable store allows the
// user through (logged at error level), and an oracle error on one channel
// excludes that channel from enforcement rather than locking users out
// behind a broken channel.
func (g *Gate) Authorize(ctx context.Context, userID int64) Decision {
	isAdmin, err := g.store.IsAdmin(ctx, userID)
	if err != nil {
		log.Printf("[gate] ERROR admin lookup for %d failed, allowing: %v", userID, err)
		return Decision{Allowed: true}
	}
	if isAdmin {
		return Decision{Allowed: true}
	}

	verified, err := g.store.IsUserVerified(ctx, userID)
	if err != nil {
		log.Printf("[gate] ERROR verified lookup for %d failed, allowing: %v", userID, err)
		return Decision{Allowed: true}
	}
	if verified {
		return Decision{Allowed: true}
	}

	channels, err := g.store.ActiveForceJoinChannels(ctx)
	if err != nil {
		log.Printf("[gate] ERROR channel list failed, allowing %d: %v", userID, err)
		return Decision{Allowed: true}
	}
	if len(channels) == 0 {
		// Nothing configured, nothing to verify against.
		return Decision{Allowed: true}
	}

	// Membership checks are independent reads; issue them concurrently and
	// aggregate in channel order.
	statuses := make([]Status, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, channelID int64) {
			defer wg.Done()
			statuses[i] = g.oracle.MembershipStatus(ctx, channelID, userID)
		}(i, ch.ChannelID)
	}
	wg.Wait()

	var missing []db.ForceJoinChannel
	for i, ch := range channels {
		st := statuses[i]
		if st == StatusError {
			log.Printf("[gate] membership check failed for channel %d (user %d), skipping channel", ch.ChannelID, userID)
			continue
		}
		if !st.joined() {
			missing = append(missing, ch)
		}
	}

	if len(missing) > 0 {
		return Decision{Allowed: false, Missing: missing}
	}

	// Sticky: once verified, the user is never re-checked.
	if err := g.store.MarkUserVerified(ctx, userID); err != nil {
		log.Printf("[gate] ERROR marking %d verified: %v", userID, err)
	}
	return Decision{Allowed: true}
}

// HandleVerify re-evaluates the gate for the "I joined, verify me" callback.
// Safe to invoke repeatedly: re-running Authorize has no side effect beyond
// the idempotent verified-flag write.
func (g *Gate) HandleVerify(ctx context.Context, userID int64) Decision {
	return g.Authorize(ctx, userID)
}
