package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/template"
	"github.com/Tpanarchist/omen/vocab"
)

// planStep is one line of a compiled episode's JSONL plan: the step's
// identity and topology plus the MCP envelope fragment every
// consequential packet it produces will start from. It is not itself a
// packet - no layer has run yet - which is why it carries
// expected_packet_kind rather than a payload (spec.md §4.5: "names the
// kind of packet the owner layer is expected to produce... not
// prescriptive on content, only on kind and envelope shape").
type planStep struct {
	CorrelationID string                            `json:"correlation_id"`
	TemplateID    vocab.TemplateID                  `json:"template_id"`
	StepID        string                            `json:"step_id"`
	OwnerLayer    vocab.LayerID                     `json:"owner_layer"`
	ExpectedKind  vocab.PacketKind                  `json:"expected_packet_kind"`
	Next          string                            `json:"next,omitempty"`
	Branches      map[vocab.DecisionOutcome]string `json:"branches,omitempty"`
	IsEntry       bool                              `json:"is_entry,omitempty"`
	IsExit        bool                              `json:"is_exit,omitempty"`
	MCPBindings   packet.Envelope                   `json:"mcp_bindings"`
}

// runCompileCmd implements `omenctl compile <template> [correlation_id]
// [options]` (spec.md §6): binds a compilation context against one of
// the eight canonical templates and emits its step graph as a
// line-delimited stream of planned steps, refusing to compile if the
// context violates the template's declared constraints (spec.md §4.5).
//
// Exit codes:
//
//	0 = compiled and emitted
//	1 = context violated the template's constraints
//	2 = usage/runtime error
func runCompileCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("compile", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		campaignID      = cmd.String("campaign-id", "", "optional campaign_id shared across episodes")
		intentSummary   = cmd.String("intent-summary", "compiled episode", "mcp.intent.summary")
		intentScope     = cmd.String("intent-scope", "reference CLI compile", "mcp.intent.scope")
		stakesImpact    = cmd.String("impact", string(vocab.AxisMedium), "mcp.stakes.impact")
		stakesIrrev     = cmd.String("irreversibility", string(vocab.AxisLow), "mcp.stakes.irreversibility")
		stakesUncert    = cmd.String("uncertainty", string(vocab.AxisMedium), "mcp.stakes.uncertainty")
		stakesAdversity = cmd.String("adversariality", string(vocab.AxisLow), "mcp.stakes.adversariality")
		stakesLevel     = cmd.String("stakes-level", string(vocab.StakeMedium), "mcp.stakes.stakes_level")
		qualityTier     = cmd.String("quality-tier", string(vocab.TierPar), "mcp.quality.tier")
		taskClass       = cmd.String("task-class", string(vocab.TaskLookup), "mcp.routing.task_class")
		toolsState      = cmd.String("tools-state", string(vocab.ToolsOK), "mcp.routing.tools_state")
		tokenBudget     = cmd.Int64("token-budget", 100000, "mcp.budgets.token_budget")
		toolCallBudget  = cmd.Int64("tool-call-budget", 50, "mcp.budgets.tool_call_budget")
		timeBudget      = cmd.Int64("time-budget-seconds", 3600, "mcp.budgets.time_budget_seconds")
		riskMaxLoss     = cmd.Float64("risk-max-loss", 1.0, "mcp.budgets.risk_budget.max_loss")
	)
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 || cmd.NArg() > 2 {
		fmt.Fprintln(stderr, "Usage: omenctl compile <template> [correlation_id] [options]")
		return 2
	}

	templateID := vocab.TemplateID(cmd.Arg(0))
	if !templateID.Valid() {
		fmt.Fprintf(stderr, "Error: unrecognized template %q\n", cmd.Arg(0))
		return 2
	}

	ctx := template.Context{
		CampaignID: *campaignID,
		Intent:     packet.Intent{Summary: *intentSummary, Scope: *intentScope},
		Stakes: packet.Stakes{
			Impact:          vocab.StakeAxisValue(*stakesImpact),
			Irreversibility: vocab.StakeAxisValue(*stakesIrrev),
			Uncertainty:     vocab.StakeAxisValue(*stakesUncert),
			Adversariality:  vocab.StakeAxisValue(*stakesAdversity),
			StakesLevel:     vocab.StakeLevel(*stakesLevel),
		},
		Quality: packet.Quality{
			Tier:                    vocab.QualityTier(*qualityTier),
			VerificationRequirement: vocab.VerifyOne,
			DefinitionOfDone:        packet.DefinitionOfDone{Text: "compiled plan", Checks: []string{"layer output validates"}},
		},
		Budgets: packet.Budgets{
			TokenBudget:       *tokenBudget,
			ToolCallBudget:    *toolCallBudget,
			TimeBudgetSeconds: *timeBudget,
			RiskBudget:        packet.RiskBudget{Envelope: "default", MaxLoss: *riskMaxLoss},
		},
		ToolsState: vocab.ToolsState(*toolsState),
		TaskClass:  vocab.TaskClass(*taskClass),
	}

	reg := template.DefaultRegistry()
	compiled, err := template.CompileTemplate(reg, templateID, ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if cmd.NArg() == 2 {
		compiled.CorrelationID = cmd.Arg(1)
	}

	def, ok := reg.Definition(templateID)
	if !ok {
		fmt.Fprintf(stderr, "Error: template %q vanished from the registry after compiling\n", templateID)
		return 2
	}

	enc := json.NewEncoder(stdout)
	for _, step := range def.Steps {
		line := planStep{
			CorrelationID: compiled.CorrelationID,
			TemplateID:    templateID,
			StepID:        step.ID,
			OwnerLayer:    step.OwnerLayer,
			ExpectedKind:  step.ExpectedKind,
			Next:          step.Next,
			Branches:      step.Branches,
			IsEntry:       step.ID == compiled.EntryStep,
			IsExit:        compiled.Steps.IsExit(step.ID),
			MCPBindings:   compiled.MCPBindings,
		}
		if err := enc.Encode(line); err != nil {
			fmt.Fprintf(stderr, "Error: encoding step %q: %v\n", step.ID, err)
			return 2
		}
	}
	return 0
}
