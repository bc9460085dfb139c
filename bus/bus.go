// Package bus implements the two FIFO message channels (northbound
// telemetry, southbound directives) that carry admitted packets between
// layers. Grounded on gomind's subscriber-handle pattern for telemetry
// hooks (telemetry/registry.go): handlers are held by function value,
// never by reference back to the publisher, so a bus never needs to know
// who is listening beyond the function it was handed (spec.md §9's
// interior-mutability note on breaking layer/bus reference cycles).
package bus

import (
	"sync"
	"time"

	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// Message is one delivery on a bus: the packet plus an optional target.
// A nil Target means broadcast to every subscriber; a non-nil Target
// restricts delivery to subscribers registered under that layer.
type Message struct {
	Packet    packet.Packet
	Target    *vocab.LayerID
	DeliveredAt time.Time
}

// Handler receives a delivered message. Handlers are expected to be
// fast and non-blocking; the bus does not enforce this but logs slow
// handlers nowhere — that is left to the handler's own instrumentation.
type Handler func(Message) error

type subscription struct {
	layer   vocab.LayerID
	handler Handler
}

const recentLogCap = 256

// Bus is a single directional message channel (northbound or
// southbound). It is safe for concurrent Publish/Subscribe calls.
type Bus struct {
	name string

	mu            sync.RWMutex
	subscriptions []subscription
	recent        []Message

	logger core.Logger
}

// New creates a Bus identified by name (used only in log lines), with
// logger defaulting to core.NoOpLogger when nil.
func New(name string, logger core.Logger) *Bus {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Bus{name: name, logger: logger}
}

// Subscribe registers handler to receive every broadcast message plus
// every point-to-point message targeted at layer. It returns nothing to
// unsubscribe by design — this module's buses live for the lifetime of
// the runner that owns them, matching spec.md §4.8's fixed topology.
func (b *Bus) Subscribe(layer vocab.LayerID, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = append(b.subscriptions, subscription{layer: layer, handler: handler})
}

// Publish delivers msg to every broadcast subscriber (Target == nil) or
// to the subscribers registered under *msg.Target otherwise. Per-
// subscriber delivery errors are logged and do not abort delivery to
// the remaining subscribers, matching spec.md §4.8 ("Delivery errors
// per subscriber are logged and do not abort the sender").
func (b *Bus) Publish(msg Message) {
	msg.DeliveredAt = time.Now()

	b.mu.Lock()
	b.recent = append(b.recent, msg)
	if len(b.recent) > recentLogCap {
		b.recent = b.recent[len(b.recent)-recentLogCap:]
	}
	subs := make([]subscription, len(b.subscriptions))
	copy(subs, b.subscriptions)
	b.mu.Unlock()

	for _, sub := range subs {
		if msg.Target != nil && sub.layer != *msg.Target {
			continue
		}
		if err := sub.handler(msg); err != nil {
			b.logger.Warn("bus.deliver_failed", map[string]interface{}{
				"bus":         b.name,
				"subscriber":  string(sub.layer),
				"packet_kind": string(msg.Packet.Kind()),
				"error":       err.Error(),
			})
		}
	}
}

// Recent returns the bounded recent-message log, newest last, for
// debugging. The slice is a copy; callers may not mutate the bus.
func (b *Bus) Recent() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, len(b.recent))
	copy(out, b.recent)
	return out
}

// Northbound and Southbound packet kinds per spec.md §4.8: northbound
// carries telemetry upward (observations, results, belief updates,
// escalations, integrity alerts); southbound carries directives
// downward (decisions, verification plans, tool authorizations, task
// directives).
var NorthboundKinds = []vocab.PacketKind{
	vocab.Observation, vocab.TaskResult, vocab.BeliefUpdate, vocab.Escalation, vocab.IntegrityAlert,
}

var SouthboundKinds = []vocab.PacketKind{
	vocab.Decision, vocab.VerificationPlan, vocab.ToolAuthorizationToken, vocab.TaskDirective,
}

// IsNorthbound reports whether kind travels on the northbound channel.
func IsNorthbound(kind vocab.PacketKind) bool {
	for _, k := range NorthboundKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsSouthbound reports whether kind travels on the southbound channel.
func IsSouthbound(kind vocab.PacketKind) bool {
	for _, k := range SouthboundKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Pair bundles the two directional channels a runner or integrity
// overlay needs to route a packet without re-deriving which bus it
// belongs on at every call site.
type Pair struct {
	Northbound *Bus
	Southbound *Bus
}

// NewPair builds a fresh Northbound/Southbound bus pair sharing logger.
func NewPair(logger core.Logger) *Pair {
	return &Pair{
		Northbound: New("northbound", logger),
		Southbound: New("southbound", logger),
	}
}

// Route publishes p on whichever channel its kind belongs to. Packets
// that travel on neither channel (none currently exist, but future
// packet kinds might) are dropped with a logged warning rather than a
// panic.
func (p *Pair) Route(pkt packet.Packet, target *vocab.LayerID) {
	switch {
	case IsNorthbound(pkt.Kind()):
		p.Northbound.Publish(Message{Packet: pkt, Target: target})
	case IsSouthbound(pkt.Kind()):
		p.Southbound.Publish(Message{Packet: pkt, Target: target})
	default:
		p.Northbound.logger.Warn("bus.unrouted_packet_kind", map[string]interface{}{
			"packet_kind": string(pkt.Kind()),
		})
	}
}
