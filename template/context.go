package template

import (
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// Context is the caller-supplied compilation input spec.md §4.5 names:
// intent, stakes axes, quality tier, tools_state, budgets, task class,
// campaign id, plus free-form template-specific parameters.
type Context struct {
	CampaignID string
	Intent     packet.Intent
	Stakes     packet.Stakes
	Quality    packet.Quality
	Budgets    packet.Budgets
	ToolsState vocab.ToolsState
	TaskClass  vocab.TaskClass
	Params     map[string]interface{}
}

// envelope binds the context's shared fields into an MCP envelope
// fragment every step's consequential packets start from. Evidence is
// left absent by default ("compile-time" binding, not yet observed);
// the layer producing a given step fills in whatever the packet kind
// actually requires.
func (c Context) envelope() packet.Envelope {
	return packet.Envelope{
		Intent:     c.Intent,
		Stakes:     c.Stakes,
		Quality:    c.Quality,
		Budgets:    c.Budgets,
		Epistemics: packet.Epistemics{Status: vocab.Observed, FreshnessClass: vocab.FreshnessStrategic},
		Evidence:   packet.Evidence{AbsentReason: "not yet observed at compile time"},
		Routing:    packet.Routing{TaskClass: c.TaskClass, ToolsState: c.ToolsState},
	}
}
