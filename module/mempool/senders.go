package mempool

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/garpnet/consensus-core/model/chain"
)

// senderGate tracks per-sender rate limits, behavior scores and bans.
// Senders are tracked lazily on first sight.
type senderGate struct {
	sync.Mutex
	limit    rate.Limit
	burst    int
	floor    int
	limiters map[chain.ParticipantID]*rate.Limiter
	behavior map[chain.ParticipantID]int
	banned   map[chain.ParticipantID]struct{}
}

func newSenderGate(cfg Config) *senderGate {
	g := &senderGate{
		limit:    rate.Limit(cfg.SenderRefillPerSecond),
		burst:    cfg.SenderBucketCapacity,
		floor:    cfg.BehaviorFloor,
		limiters: make(map[chain.ParticipantID]*rate.Limiter),
		behavior: make(map[chain.ParticipantID]int),
		banned:   make(map[chain.ParticipantID]struct{}),
	}
	for _, sender := range cfg.BannedSenders {
		g.banned[chain.ParticipantID(sender)] = struct{}{}
	}
	return g
}

// admit checks the ban list, the behavior gate and the rate limit, in that
// order. Tokens are only consumed if the sender passes the first two.
func (g *senderGate) admit(sender chain.ParticipantID, cost int, now time.Time) error {
	g.Lock()
	defer g.Unlock()

	if _, ok := g.banned[sender]; ok {
		return ErrSenderBanned
	}
	if g.scoreLocked(sender) < g.floor {
		return ErrSenderGated
	}
	limiter, ok := g.limiters[sender]
	if !ok {
		limiter = rate.NewLimiter(g.limit, g.burst)
		g.limiters[sender] = limiter
	}
	if !limiter.AllowN(now, cost) {
		return ErrRateLimited
	}
	return nil
}

func (g *senderGate) scoreLocked(sender chain.ParticipantID) int {
	if score, ok := g.behavior[sender]; ok {
		return score
	}
	return InitialBehaviorScore
}

func (g *senderGate) score(sender chain.ParticipantID) int {
	g.Lock()
	defer g.Unlock()
	return g.scoreLocked(sender)
}

func (g *senderGate) set(sender chain.ParticipantID, score int) int {
	g.Lock()
	defer g.Unlock()
	score = clampBehavior(score)
	g.behavior[sender] = score
	return score
}

func (g *senderGate) adjust(sender chain.ParticipantID, delta int) int {
	g.Lock()
	defer g.Unlock()
	score := clampBehavior(g.scoreLocked(sender) + delta)
	g.behavior[sender] = score
	return score
}

func (g *senderGate) reset(sender chain.ParticipantID) {
	g.Lock()
	defer g.Unlock()
	delete(g.behavior, sender)
}

func (g *senderGate) ban(sender chain.ParticipantID) {
	g.Lock()
	defer g.Unlock()
	g.banned[sender] = struct{}{}
}

func (g *senderGate) unban(sender chain.ParticipantID) {
	g.Lock()
	defer g.Unlock()
	delete(g.banned, sender)
}

func (g *senderGate) isBanned(sender chain.ParticipantID) bool {
	g.Lock()
	defer g.Unlock()
	_, ok := g.banned[sender]
	return ok
}

func clampBehavior(score int) int {
	if score < MinBehaviorScore {
		return MinBehaviorScore
	}
	if score > MaxBehaviorScore {
		return MaxBehaviorScore
	}
	return score
}
