package packet

import (
	"encoding/json"
	"fmt"

	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/vocab"
)

func wrapSchemaErr(op string, err error) *core.FrameworkError {
	return core.NewFrameworkError(op, "schema_violation", fmt.Errorf("%w: %v", core.ErrSchemaViolation, err))
}

type headerPeek struct {
	Header Header `json:"header"`
}

// Decode inspects the wire header's packet_kind and unmarshals data into
// the matching concrete variant, returned through the Packet interface.
// Callers that need the concrete type (e.g. the runner applying a
// DecisionPacket's outcome) type-assert after a successful decode.
func Decode(data []byte) (Packet, error) {
	var peek headerPeek
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, wrapSchemaErr("packet.Decode", err)
	}

	var err error
	switch peek.Header.PacketKind {
	case vocab.Observation:
		var p ObservationPacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	case vocab.BeliefUpdate:
		var p BeliefUpdatePacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	case vocab.Decision:
		var p DecisionPacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	case vocab.VerificationPlan:
		var p VerificationPlanPacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	case vocab.ToolAuthorizationToken:
		var p ToolAuthorizationTokenPacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	case vocab.TaskDirective:
		var p TaskDirectivePacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	case vocab.TaskResult:
		var p TaskResultPacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	case vocab.Escalation:
		var p EscalationPacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	case vocab.IntegrityAlert:
		var p IntegrityAlertPacket
		if err = json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
	default:
		return nil, core.NewFrameworkError("packet.Decode", "unknown_packet_kind",
			fmt.Errorf("unrecognized packet_kind %q: %w", peek.Header.PacketKind, core.ErrUnknownPacketKind)).
			WithID(peek.Header.PacketID)
	}
	return nil, wrapSchemaErr("packet.Decode", err).WithID(peek.Header.PacketID)
}

// Encode marshals any variant back to its wire JSON form.
func Encode(p Packet) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, core.NewFrameworkError("packet.Encode", "internal", err)
	}
	return data, nil
}
