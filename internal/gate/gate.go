// internal/gate/gate.go
package gate

import (
	"container/list"
	"sync"
	"time"

	"shopscout/internal/common/metrics"
)

// channelState holds the per-channel passive-listening state.
type channelState struct {
	channelID    string
	lastInvoked  time.Time
	lastSearched string
	hasSearched  bool
	messages     []string
}

// Gate decides whether a passively monitored message should trigger the
// recommendation pipeline. State is process-lifetime, keyed by channel, and
// bounded by an LRU cap so long-running processes don't grow without limit.
type Gate struct {
	mu          sync.Mutex
	channels    map[string]*list.Element
	order       *list.List
	cooldown    time.Duration
	maxContext  int
	maxChannels int
	now         func() time.Time
}

// New creates a Gate. cooldownSeconds throttles pipeline invocations per
// channel, maxContext bounds the rolling message window, and maxChannels
// caps the number of tracked channels.
func New(cooldownSeconds, maxContext, maxChannels int) *Gate {
	if cooldownSeconds < 1 {
		cooldownSeconds = 30
	}
	if maxContext < 1 {
		maxContext = 5
	}
	if maxChannels < 1 {
		maxChannels = 1000
	}
	return &Gate{
		channels:    make(map[string]*list.Element),
		order:       list.New(),
		cooldown:    time.Duration(cooldownSeconds) * time.Second,
		maxContext:  maxContext,
		maxChannels: maxChannels,
		now:         time.Now,
	}
}

// ShouldInvoke reports whether the cooldown window for a channel has
// elapsed. Returning true consumes the slot: the last-invoked timestamp is
// updated, so callers must not call this speculatively.
func (g *Gate) ShouldInvoke(channelID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	state := g.touch(channelID)

	if !state.lastInvoked.IsZero() && now.Sub(state.lastInvoked) < g.cooldown {
		metrics.GateDecisions.WithLabelValues("cooldown").Inc()
		return false
	}

	state.lastInvoked = now
	metrics.GateDecisions.WithLabelValues("invoked").Inc()
	return true
}

// IsDuplicate reports whether itemName matches the last item searched in the
// channel. The stored item is overwritten on every call, duplicate or not,
// so two identical queries separated by a third are both searched.
func (g *Gate) IsDuplicate(channelID, itemName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.touch(channelID)
	duplicate := state.hasSearched && state.lastSearched == itemName

	state.lastSearched = itemName
	state.hasSearched = true

	if duplicate {
		metrics.GateDecisions.WithLabelValues("duplicate").Inc()
	}
	return duplicate
}

// AddMessage appends a message to the channel's rolling context window.
func (g *Gate) AddMessage(channelID, content string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.touch(channelID)
	state.messages = append(state.messages, content)
	if len(state.messages) > g.maxContext {
		state.messages = state.messages[len(state.messages)-g.maxContext:]
	}
}

// Context returns a copy of the channel's recent messages, oldest first.
func (g *Gate) Context(channelID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	elem, ok := g.channels[channelID]
	if !ok {
		return nil
	}
	state := elem.Value.(*channelState)
	out := make([]string, len(state.messages))
	copy(out, state.messages)
	return out
}

// touch returns the channel's state, creating it and evicting the least
// recently used channel if the cap is reached. Callers must hold the lock.
func (g *Gate) touch(channelID string) *channelState {
	if elem, ok := g.channels[channelID]; ok {
		g.order.MoveToFront(elem)
		return elem.Value.(*channelState)
	}

	if g.order.Len() >= g.maxChannels {
		oldest := g.order.Back()
		if oldest != nil {
			evicted := oldest.Value.(*channelState)
			delete(g.channels, evicted.channelID)
			g.order.Remove(oldest)
		}
	}

	state := &channelState{channelID: channelID}
	g.channels[channelID] = g.order.PushFront(state)
	return state
}
