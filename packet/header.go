// Package packet defines the typed packet variants the protocol admits,
// their shared header and MCP envelope, evidence references, and the
// JSON codec between wire format and Go structs. Every variant is a
// distinct Go type rather than an open map, so a switch over PacketKind
// is exhaustive at compile time (spec design note: sum types over ad-hoc
// dictionaries).
package packet

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Tpanarchist/omen/vocab"
)

// Header carries identity and routing information shared by every packet.
type Header struct {
	PacketID         string          `json:"packet_id"`
	PacketKind       vocab.PacketKind `json:"packet_kind"`
	CreatedAt        time.Time       `json:"created_at"`
	SourceLayer      vocab.LayerID   `json:"source_layer"`
	CorrelationID    string          `json:"correlation_id"`
	CampaignID       string          `json:"campaign_id,omitempty"`
	PreviousPacketID string          `json:"previous_packet_id,omitempty"`
}

// NewPacketID returns a fresh pkt_ identifier. Grounded on gomind's own
// uuid.New().String() short-id convention (core/agent.go, core/tool.go),
// extended with the wire format's pkt_ prefix (spec.md §6).
func NewPacketID() string {
	return fmt.Sprintf("pkt_%s", uuid.New().String())
}

// NewCorrelationID returns a fresh corr_ identifier for a new episode.
func NewCorrelationID() string {
	return fmt.Sprintf("corr_%s", uuid.New().String())
}

// NewTaskID returns a fresh task_ identifier.
func NewTaskID() string {
	return fmt.Sprintf("task_%s", uuid.New().String())
}

// NewTokenID returns a fresh token_ identifier.
func NewTokenID() string {
	return fmt.Sprintf("token_%s", uuid.New().String())
}
